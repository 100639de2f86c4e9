package lsp

import (
	"encoding/json"
	"fmt"
)

// DocumentURI is a resource identifier as used in LSP, typically file://.
type DocumentURI string

// Position in a text document, zero-based line and character offset.
// Character offsets are UTF-16 code units per the LSP specification.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [start, end) span in a document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a position inside a resource.
type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

// LocationLink is the link-support variant of Location.
type LocationLink struct {
	OriginSelectionRange *Range      `json:"originSelectionRange,omitempty"`
	TargetURI            DocumentURI `json:"targetUri"`
	TargetRange          Range       `json:"targetRange"`
	TargetSelectionRange Range       `json:"targetSelectionRange"`
}

// TextDocumentIdentifier identifies a text document.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// VersionedTextDocumentIdentifier identifies a specific version of a document.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

// TextDocumentItem transfers a document from client to server.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentPositionParams pairs a document with a position inside it.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// TextEdit replaces a range with new text.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// AnnotatedTextEdit is a TextEdit carrying a change annotation id.
// Only the edit itself matters to us.
type AnnotatedTextEdit struct {
	TextEdit
	AnnotationID string `json:"annotationId,omitempty"`
}

// MarkupContent is human-readable text in a declared format.
type MarkupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Hover is the result of textDocument/hover.
type Hover struct {
	Contents json.RawMessage `json:"contents"`
	Range    *Range          `json:"range,omitempty"`
}

// WorkspaceFolder names a root the server should consider.
type WorkspaceFolder struct {
	URI  DocumentURI `json:"uri"`
	Name string      `json:"name"`
}

// --- WorkspaceEdit ---

// WorkspaceEdit describes text edits and resource operations across files.
// Servers send either the Changes map or the DocumentChanges list.
type WorkspaceEdit struct {
	Changes         map[DocumentURI][]TextEdit `json:"changes,omitempty"`
	DocumentChanges []DocumentChange           `json:"documentChanges,omitempty"`
}

// DocumentChange is one element of WorkspaceEdit.documentChanges: either a
// TextDocumentEdit or a create/rename/delete resource operation, discriminated
// by the presence of "kind".
type DocumentChange struct {
	TextDocumentEdit *TextDocumentEdit
	CreateFile       *CreateFile
	RenameFile       *RenameFile
	DeleteFile       *DeleteFile
}

// UnmarshalJSON dispatches on the "kind" discriminator.
func (c *DocumentChange) UnmarshalJSON(data []byte) error {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch probe.Kind {
	case "create":
		c.CreateFile = &CreateFile{}
		return json.Unmarshal(data, c.CreateFile)
	case "rename":
		c.RenameFile = &RenameFile{}
		return json.Unmarshal(data, c.RenameFile)
	case "delete":
		c.DeleteFile = &DeleteFile{}
		return json.Unmarshal(data, c.DeleteFile)
	case "":
		c.TextDocumentEdit = &TextDocumentEdit{}
		return json.Unmarshal(data, c.TextDocumentEdit)
	default:
		return fmt.Errorf("unknown document change kind %q", probe.Kind)
	}
}

// MarshalJSON emits whichever variant is set.
func (c DocumentChange) MarshalJSON() ([]byte, error) {
	switch {
	case c.TextDocumentEdit != nil:
		return json.Marshal(c.TextDocumentEdit)
	case c.CreateFile != nil:
		return json.Marshal(c.CreateFile)
	case c.RenameFile != nil:
		return json.Marshal(c.RenameFile)
	case c.DeleteFile != nil:
		return json.Marshal(c.DeleteFile)
	}
	return []byte("null"), nil
}

// TextDocumentEdit applies edits to a single versioned document.
type TextDocumentEdit struct {
	TextDocument OptionalVersionedTextDocumentIdentifier `json:"textDocument"`
	Edits        []AnnotatedTextEdit                     `json:"edits"`
}

// OptionalVersionedTextDocumentIdentifier carries a possibly-null version.
type OptionalVersionedTextDocumentIdentifier struct {
	URI     DocumentURI `json:"uri"`
	Version *int        `json:"version"`
}

// CreateFile is a create resource operation.
type CreateFile struct {
	Kind string      `json:"kind"`
	URI  DocumentURI `json:"uri"`
}

// RenameFile is a rename resource operation.
type RenameFile struct {
	Kind   string      `json:"kind"`
	OldURI DocumentURI `json:"oldUri"`
	NewURI DocumentURI `json:"newUri"`
}

// DeleteFile is a delete resource operation.
type DeleteFile struct {
	Kind string      `json:"kind"`
	URI  DocumentURI `json:"uri"`
}

// --- Lifecycle ---

// InitializeParams is the payload of the initialize request. RootURI and
// RootPath are deprecated in LSP but still required by older servers.
type InitializeParams struct {
	ProcessID             int               `json:"processId"`
	RootURI               DocumentURI       `json:"rootUri,omitempty"`
	RootPath              string            `json:"rootPath,omitempty"`
	Capabilities          json.RawMessage   `json:"capabilities"`
	InitializationOptions any               `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []WorkspaceFolder `json:"workspaceFolders,omitempty"`
}

// InitializeResult is the server's half of the handshake.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerInfo names the server implementation.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerCapabilities is the subset of the server capability surface the
// daemon consults. Provider fields are bool-or-object in the protocol, so
// they are held raw and probed with HasCapability.
type ServerCapabilities struct {
	TextDocumentSync        json.RawMessage              `json:"textDocumentSync,omitempty"`
	HoverProvider           json.RawMessage              `json:"hoverProvider,omitempty"`
	DefinitionProvider      json.RawMessage              `json:"definitionProvider,omitempty"`
	DeclarationProvider     json.RawMessage              `json:"declarationProvider,omitempty"`
	TypeDefinitionProvider  json.RawMessage              `json:"typeDefinitionProvider,omitempty"`
	ImplementationProvider  json.RawMessage              `json:"implementationProvider,omitempty"`
	ReferencesProvider      json.RawMessage              `json:"referencesProvider,omitempty"`
	DocumentSymbolProvider  json.RawMessage              `json:"documentSymbolProvider,omitempty"`
	WorkspaceSymbolProvider json.RawMessage              `json:"workspaceSymbolProvider,omitempty"`
	RenameProvider          json.RawMessage              `json:"renameProvider,omitempty"`
	CallHierarchyProvider   json.RawMessage              `json:"callHierarchyProvider,omitempty"`
	TypeHierarchyProvider   json.RawMessage              `json:"typeHierarchyProvider,omitempty"`
	PositionEncoding        string                       `json:"positionEncoding,omitempty"`
	Workspace               *ServerWorkspaceCapabilities `json:"workspace,omitempty"`
}

// ServerWorkspaceCapabilities is the workspace sub-block of server capabilities.
type ServerWorkspaceCapabilities struct {
	FileOperations *FileOperationsServerCapabilities `json:"fileOperations,omitempty"`
}

// FileOperationsServerCapabilities advertises file-operation support.
type FileOperationsServerCapabilities struct {
	WillRename json.RawMessage `json:"willRename,omitempty"`
}

// SupportsWillRenameFiles reports whether the server handles
// workspace/willRenameFiles.
func (c *ServerCapabilities) SupportsWillRenameFiles() bool {
	return c.Workspace != nil &&
		c.Workspace.FileOperations != nil &&
		len(c.Workspace.FileOperations.WillRename) > 0 &&
		string(c.Workspace.FileOperations.WillRename) != "null"
}

// HasCapability reports whether a raw bool-or-object capability is enabled.
func HasCapability(raw json.RawMessage) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	// An object, with or without options, means enabled.
	return true
}

// --- Document sync ---

// DidOpenTextDocumentParams is the payload of textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidCloseTextDocumentParams is the payload of textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// --- Watched files ---

// FileChangeType enumerates watched-file event kinds.
type FileChangeType int

const (
	FileCreated FileChangeType = 1
	FileChanged FileChangeType = 2
	FileDeleted FileChangeType = 3
)

// FileEvent is one entry of a didChangeWatchedFiles notification.
type FileEvent struct {
	URI  DocumentURI    `json:"uri"`
	Type FileChangeType `json:"type"`
}

// DidChangeWatchedFilesParams is the payload of workspace/didChangeWatchedFiles.
type DidChangeWatchedFilesParams struct {
	Changes []FileEvent `json:"changes"`
}

// --- File operations ---

// FileRename names one old→new pair for workspace/willRenameFiles.
type FileRename struct {
	OldURI string `json:"oldUri"`
	NewURI string `json:"newUri"`
}

// RenameFilesParams is the payload of workspace/willRenameFiles.
type RenameFilesParams struct {
	Files []FileRename `json:"files"`
}

// --- Rename ---

// RenameParams is the payload of textDocument/rename.
type RenameParams struct {
	TextDocumentPositionParams
	NewName string `json:"newName"`
}

// --- References ---

// ReferenceParams is the payload of textDocument/references.
type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

// ReferenceContext controls declaration inclusion.
type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// --- Document symbols ---

// DocumentSymbolParams is the payload of textDocument/documentSymbol.
type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DocumentSymbol is the hierarchical symbol shape.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           SymbolKind       `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// SymbolInformation is the flat symbol shape.
type SymbolInformation struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	Location      Location   `json:"location"`
	ContainerName string     `json:"containerName,omitempty"`
}

// DocumentSymbolResponse holds either shape of a documentSymbol result.
// Servers pick one; a null result decodes to both slices empty.
type DocumentSymbolResponse struct {
	Nested []DocumentSymbol
	Flat   []SymbolInformation
}

// UnmarshalJSON sniffs the array element shape: hierarchical symbols carry
// selectionRange, flat ones carry location.
func (r *DocumentSymbolResponse) UnmarshalJSON(data []byte) error {
	r.Nested = nil
	r.Flat = nil
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var probe []struct {
		SelectionRange *Range    `json:"selectionRange"`
		Location       *Location `json:"location"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if len(probe) == 0 {
		return nil
	}
	if probe[0].SelectionRange != nil {
		return json.Unmarshal(data, &r.Nested)
	}
	return json.Unmarshal(data, &r.Flat)
}

// --- Call hierarchy ---

// CallHierarchyPrepareParams is the payload of textDocument/prepareCallHierarchy.
type CallHierarchyPrepareParams struct {
	TextDocumentPositionParams
}

// CallHierarchyItem identifies a callable in the hierarchy.
type CallHierarchyItem struct {
	Name           string          `json:"name"`
	Kind           SymbolKind      `json:"kind"`
	Detail         string          `json:"detail,omitempty"`
	URI            DocumentURI     `json:"uri"`
	Range          Range           `json:"range"`
	SelectionRange Range           `json:"selectionRange"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// CallHierarchyItemParams wraps an item for the traversal requests.
type CallHierarchyItemParams struct {
	Item CallHierarchyItem `json:"item"`
}

// CallHierarchyOutgoingCall is one edge of callHierarchy/outgoingCalls.
type CallHierarchyOutgoingCall struct {
	To         CallHierarchyItem `json:"to"`
	FromRanges []Range           `json:"fromRanges"`
}

// CallHierarchyIncomingCall is one edge of callHierarchy/incomingCalls.
type CallHierarchyIncomingCall struct {
	From       CallHierarchyItem `json:"from"`
	FromRanges []Range           `json:"fromRanges"`
}

// --- Type hierarchy ---

// TypeHierarchyItem identifies a type in the hierarchy.
type TypeHierarchyItem struct {
	Name           string          `json:"name"`
	Kind           SymbolKind      `json:"kind"`
	Detail         string          `json:"detail,omitempty"`
	URI            DocumentURI     `json:"uri"`
	Range          Range           `json:"range"`
	SelectionRange Range           `json:"selectionRange"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// TypeHierarchyItemParams wraps an item for subtypes/supertypes requests.
type TypeHierarchyItemParams struct {
	Item TypeHierarchyItem `json:"item"`
}

// ParseLocations decodes a definition-style response, which may be null, a
// single Location, an array of Locations, or an array of LocationLinks.
func ParseLocations(data json.RawMessage) []Location {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var single Location
	if err := json.Unmarshal(data, &single); err == nil && single.URI != "" {
		return []Location{single}
	}

	var links []LocationLink
	if err := json.Unmarshal(data, &links); err == nil && len(links) > 0 && links[0].TargetURI != "" {
		locs := make([]Location, 0, len(links))
		for _, l := range links {
			locs = append(locs, Location{URI: l.TargetURI, Range: l.TargetSelectionRange})
		}
		return locs
	}

	var locs []Location
	if err := json.Unmarshal(data, &locs); err == nil {
		return locs
	}
	return nil
}
