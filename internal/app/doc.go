// Package app ties documents to language servers.
//
// An Editor owns the open documents and a registry of language server
// connections. It is the connections' Host: diagnostics land on the
// documents, server edits are applied through the document change API,
// and answers to requests are kept for the user interface to show.
package app
