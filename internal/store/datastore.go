package store

// DataStore is the interface for extraction-phase data access. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// extraction) implement this interface.
type DataStore interface {
	// Extraction inserts. Each returns the assigned ID.
	InsertSymbol(sym *Symbol) (int64, error)
	InsertTypeParam(tp *TypeParam) (int64, error)
	InsertFunctionParam(fp *FunctionParam) (int64, error)
	InsertBaseType(bt *BaseType) (int64, error)
	InsertExtensionBinding(eb *ExtensionBinding) (int64, error)

	SymbolsByDocument(documentID int64) ([]*Symbol, error)
}

var _ DataStore = (*Store)(nil)
