package executors

import (
	"github.com/pkg/errors"
	"tupledb/catalog"
	"tupledb/execution"
)

// SeqScan reads every tuple of a table in storage order. Column names of its output are prefixed with the alias.
type SeqScan struct {
	execution.BaseIterator
	ctx   *execution.ExecutorContext
	file  scannable
	alias string
	desc  *catalog.TupleDesc
	it    execution.DbFileIterator
}

var _ execution.OpIterator = &SeqScan{}

// NewSeqScan creates a scan over the table with given id in the context's catalog.
func NewSeqScan(ctx *execution.ExecutorContext, tableID int32, alias string) (*SeqScan, error) {
	file, err := ctx.Catalog.GetDatabaseFile(tableID)
	if err != nil {
		return nil, err
	}

	s, ok := file.(scannable)
	if !ok {
		return nil, errors.Errorf("table %d cannot be scanned", tableID)
	}
	return NewSeqScanOverFile(ctx, s, alias), nil
}

func NewSeqScanOverFile(ctx *execution.ExecutorContext, file scannable, alias string) *SeqScan {
	s := &SeqScan{
		ctx:   ctx,
		file:  file,
		alias: alias,
		desc:  aliasedDesc(file.Desc(), alias),
	}
	s.FetchNext = s.fetchNext
	return s
}

func aliasedDesc(desc *catalog.TupleDesc, alias string) *catalog.TupleDesc {
	if alias == "" {
		return desc
	}

	cols := make([]catalog.Column, desc.NumFields())
	for i, c := range desc.GetColumns() {
		cols[i] = catalog.Column{Name: alias + "." + c.Name, Type: c.Type}
	}
	return catalog.NewTupleDesc(cols...)
}

func (s *SeqScan) Alias() string {
	return s.alias
}

func (s *SeqScan) Desc() *catalog.TupleDesc {
	return s.desc
}

func (s *SeqScan) Open() error {
	if err := closeAll(s.it); err != nil {
		return err
	}

	s.it = s.file.Iterator(s.ctx.Pool, s.ctx.Txn)
	if err := s.it.Open(); err != nil {
		return err
	}
	return s.BaseIterator.Open()
}

func (s *SeqScan) Rewind() error {
	if err := s.CheckOpen(); err != nil {
		return err
	}
	if err := s.it.Rewind(); err != nil {
		return err
	}

	s.ResetPending()
	return nil
}

func (s *SeqScan) Close() error {
	err := closeAll(s.it)
	s.it = nil
	if closeErr := s.BaseIterator.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (s *SeqScan) fetchNext() (*catalog.Tuple, error) {
	t, err := nextOf(s.it)
	if err != nil || t == nil {
		return nil, err
	}

	t.Desc = s.desc
	return t, nil
}
