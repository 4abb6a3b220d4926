// Package github wraps the GitHub REST API calls used to build projects:
// creating a repository and committing a set of files to it in one commit.
package github
