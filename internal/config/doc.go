// Package config loads the relay server's configuration from the
// environment. The server is a single binary with no project files, so
// everything comes from CODEPAIR_* variables with working defaults;
// an empty environment yields a usable development configuration.
package config
