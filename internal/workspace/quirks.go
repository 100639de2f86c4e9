package workspace

// Server quirks, keyed by registry name. Language servers differ in their
// initialize options, whether they observe files they have not opened, and
// whether their index survives a rename. Each of these workarounds is one
// entry here so future servers are handled additively. Readiness signals
// (jdtls, rust-analyzer) are handled by the LSP client, not here.

// initializationOptions returns server-specific initialize options.
func initializationOptions(serverName string) any {
	if serverName == "gopls" {
		return map[string]any{"linksInHover": false}
	}
	return nil
}

// needsPreOpenIndexing reports whether the server only indexes files it has
// seen opened, requiring a pre-open pass over the workspace at startup.
func needsPreOpenIndexing(serverName string) bool {
	return serverName == "clangd"
}

// wantsDocumentSymbolNudge reports whether the server needs a documentSymbol
// request after didOpen before its index reflects the file.
func wantsDocumentSymbolNudge(serverName string) bool {
	return serverName == "ruby-lsp"
}

// RestartAfterRename reports whether the server's index is not refreshed by
// didChangeWatchedFiles and the workspace must be restarted after a rename.
// ruby-lsp keeps stale entries for the old symbol name, which makes
// consecutive renames fail with "name already in use".
func RestartAfterRename(serverName string) bool {
	return serverName == "ruby-lsp"
}
