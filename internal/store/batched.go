package store

import "sync"

// BatchedStore buffers extraction inserts in memory using fake (negative)
// IDs. It implements DataStore so extraction can write to it without knowing
// whether it is hitting SQLite or an in-memory buffer.
//
// The mutex protects fake ID allocation and slice appends. SymbolsByDocument
// reads through to the underlying Store.
type BatchedStore struct {
	store *Store
	mu    sync.Mutex

	Symbols           []Symbol
	TypeParams        []TypeParam
	FunctionParams    []FunctionParam
	BaseTypes         []BaseType
	ExtensionBindings []ExtensionBinding

	nextFakeID int64 // starts at -1, decrements
}

var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

// Len reports how many rows are buffered.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Symbols) + len(b.TypeParams) + len(b.FunctionParams) +
		len(b.BaseTypes) + len(b.ExtensionBindings)
}

func (b *BatchedStore) InsertSymbol(sym *Symbol) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	sym.ID = fakeID
	b.Symbols = append(b.Symbols, *sym)
	return fakeID, nil
}

func (b *BatchedStore) InsertTypeParam(tp *TypeParam) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	tp.ID = fakeID
	b.TypeParams = append(b.TypeParams, *tp)
	return fakeID, nil
}

func (b *BatchedStore) InsertFunctionParam(fp *FunctionParam) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	fp.ID = fakeID
	b.FunctionParams = append(b.FunctionParams, *fp)
	return fakeID, nil
}

func (b *BatchedStore) InsertBaseType(bt *BaseType) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	bt.ID = fakeID
	b.BaseTypes = append(b.BaseTypes, *bt)
	return fakeID, nil
}

func (b *BatchedStore) InsertExtensionBinding(eb *ExtensionBinding) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	eb.ID = fakeID
	b.ExtensionBindings = append(b.ExtensionBindings, *eb)
	return fakeID, nil
}

// SymbolsByDocument returns symbols for a document, merging any buffered
// (not yet committed) symbols with those already in the database.
func (b *BatchedStore) SymbolsByDocument(documentID int64) ([]*Symbol, error) {
	dbSyms, err := b.store.SymbolsByDocument(documentID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Symbols {
		if b.Symbols[i].DocumentID != nil && *b.Symbols[i].DocumentID == documentID {
			dbSyms = append(dbSyms, &b.Symbols[i])
		}
	}
	return dbSyms, nil
}
