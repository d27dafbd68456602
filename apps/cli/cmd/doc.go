// Package cmd implements the webtask CLI commands.
package cmd
