package exec

// Language is one supported language: its Judge0 id and the template a
// fresh room starts from.
type Language struct {
	Name     string
	ID       int
	Template string
}

// Languages lists the supported languages in menu order.
var Languages = []Language{
	{
		Name:     "javascript",
		ID:       63,
		Template: "// Write your JavaScript code here...\nconsole.log('Hello, World!');",
	},
	{
		Name:     "python",
		ID:       71,
		Template: "# Write your Python code here...\nprint('Hello, World!')",
	},
	{
		Name:     "c",
		ID:       50,
		Template: "/* Write your C code here... */\n#include <stdio.h>\nint main() {\n    printf(\"Hello, World!\\n\");\n    return 0;\n}",
	},
	{
		Name:     "cpp",
		ID:       54,
		Template: "/* Write your C++ code here... */\n#include <iostream>\nusing namespace std;\nint main() {\n    cout << \"Hello, World!\" << endl;\n    return 0;\n}",
	},
	{
		Name:     "java",
		ID:       62,
		Template: "/* Write your Java code here... */\npublic class Main {\n    public static void main(String[] args) {\n        System.out.println(\"Hello, World!\");\n    }\n}",
	},
}

// DefaultLanguage is what a fresh room starts with.
var DefaultLanguage = Languages[0]

// LanguageByName looks a language up by menu name.
func LanguageByName(name string) (Language, bool) {
	for _, l := range Languages {
		if l.Name == name {
			return l, true
		}
	}
	return Language{}, false
}
