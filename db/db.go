package db

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
	"tupledb/buffer"
	"tupledb/catalog"
	"tupledb/catalog/db_types"
	"tupledb/catalog/tables"
	"tupledb/common"
	"tupledb/concurrency"
	"tupledb/config"
	"tupledb/disk/structures"
	"tupledb/execution"
	"tupledb/locker"
	"tupledb/optimizer"
	"tupledb/transaction"
)

const (
	schemaFileName = "catalog.yaml"
	statsFileName  = "stats.snapshot"
	logFileName    = "info.log"
	tableFileExt   = ".dat"
)

// DB ties the storage, buffer pool, lock manager and catalog of one data directory together.
type DB struct {
	cfg         *config.Config
	pool        *buffer.BufferPool
	lockManager *locker.LockManager
	tm          *concurrency.TxnManager
	Catalog     *tables.InMemCatalog
	Registry    *prometheus.Registry
	logFile     *os.File

	tables map[string]*structures.HeapFile
	stats  map[int32]*optimizer.TableStats
	mu     sync.Mutex
}

type schemaFile struct {
	Tables []tableSchema `yaml:"tables"`
}

type tableSchema struct {
	Name    string         `yaml:"name"`
	Columns []columnSchema `yaml:"columns"`
}

type columnSchema struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Open opens the database in cfg.DataDir, creating the directory if needed. Tables listed in the schema file of
// the directory are opened and registered in the catalog. Logs go to a file in the data directory.
func Open(cfg *config.Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating data dir %s", cfg.DataDir)
	}

	f, err := os.OpenFile(filepath.Join(cfg.DataDir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	common.SetLogger(common.NewLogger(f, cfg.LogLevel))

	replacer, err := buffer.NewReplacer(cfg.BufferPoolReplacer, cfg.BufferPoolPages)
	common.PanicIfErr(err) // validated above

	reg := prometheus.NewRegistry()
	lm := locker.NewLockManager(cfg.Lock.DeadlockCheckInterval)
	ctg := tables.NewCatalog()

	pool := buffer.NewBufferPool(cfg.BufferPoolPages, ctg, lm, replacer, buffer.NewMetrics(reg))
	d := &DB{
		cfg:         cfg,
		pool:        pool,
		lockManager: lm,
		tm:          concurrency.NewTxnManager(pool),
		Catalog:     ctg,
		Registry:    reg,
		logFile:     f,
		tables:      map[string]*structures.HeapFile{},
		stats:       map[int32]*optimizer.TableStats{},
	}

	if err := d.loadSchema(); err != nil {
		_ = d.Close()
		return nil, err
	}

	level.Info(common.Logger()).Log("msg", "database opened", "dir", cfg.DataDir, "tables", len(d.tables))
	return d, nil
}

func (d *DB) loadSchema() error {
	data, err := os.ReadFile(filepath.Join(d.cfg.DataDir, schemaFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var schema schemaFile
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return errors.Wrapf(err, "parsing %s", schemaFileName)
	}

	for _, ts := range schema.Tables {
		cols := make([]catalog.Column, len(ts.Columns))
		for i, c := range ts.Columns {
			typ, err := db_types.ParseTypeID(c.Type)
			if err != nil {
				return errors.Wrapf(err, "column %s of table %s", c.Name, ts.Name)
			}
			cols[i] = catalog.Column{Name: c.Name, Type: typ}
		}

		if _, err := d.openTable(ts.Name, catalog.NewTupleDesc(cols...)); err != nil {
			return err
		}
	}
	return nil
}

// saveSchema writes the schema of every table. It must be called with mu held.
func (d *DB) saveSchema() error {
	names := make([]string, 0, len(d.tables))
	for name := range d.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	var schema schemaFile
	for _, name := range names {
		ts := tableSchema{Name: name}
		for _, c := range d.tables[name].Desc().GetColumns() {
			ts.Columns = append(ts.Columns, columnSchema{Name: c.Name, Type: c.Type.String()})
		}
		schema.Tables = append(schema.Tables, ts)
	}

	data, err := yaml.Marshal(&schema)
	if err != nil {
		return err
	}

	path := filepath.Join(d.cfg.DataDir, schemaFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (d *DB) openTable(name string, desc *catalog.TupleDesc) (*structures.HeapFile, error) {
	f, err := structures.NewHeapFile(filepath.Join(d.cfg.DataDir, name+tableFileExt), desc)
	if err != nil {
		return nil, err
	}

	if err := d.Catalog.AddTable(f, name); err != nil {
		_ = f.Close()
		return nil, err
	}

	d.tables[name] = f
	return f, nil
}

// CreateTable creates a table stored in its own file in the data directory.
func (d *DB) CreateTable(name string, desc *catalog.TupleDesc) (*structures.HeapFile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.tables[name]; ok {
		return nil, errors.Wrapf(tables.ErrTableNameTaken, "%q", name)
	}

	f, err := d.openTable(name, desc)
	if err != nil {
		return nil, err
	}
	if err := d.saveSchema(); err != nil {
		return nil, err
	}

	level.Info(common.Logger()).Log("msg", "table created", "table", name, "id", f.GetID(), "desc", desc)
	return f, nil
}

func (d *DB) Table(name string) (*structures.HeapFile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.tables[name]
	if !ok {
		return nil, errors.Wrapf(tables.ErrNoSuchTable, "%q", name)
	}
	return f, nil
}

func (d *DB) Pool() buffer.Pool {
	return d.pool
}

func (d *DB) BeginTxn() (transaction.TxnID, error) {
	return d.tm.Begin()
}

func (d *DB) Commit(tid transaction.TxnID) error {
	return d.tm.Commit(tid)
}

// Abort must be called for transactions that failed with transaction.ErrTransactionAborted.
func (d *DB) Abort(tid transaction.TxnID) error {
	return d.tm.Abort(tid)
}

// ExecutorContext returns the context operators of a query running in tid are created with.
func (d *DB) ExecutorContext(tid transaction.TxnID) *execution.ExecutorContext {
	return execution.NewExecutorContext(tid, d.Catalog, d.pool)
}

// ComputeStatistics recomputes the stats of every table.
func (d *DB) ComputeStatistics(ctx context.Context) error {
	d.mu.Lock()
	files := make([]optimizer.ScannableFile, 0, len(d.tables))
	for _, f := range d.tables {
		files = append(files, f)
	}
	d.mu.Unlock()

	stats, err := optimizer.ComputeStatistics(ctx, d.pool, files, d.cfg.Stats.IOCostPerPage, d.cfg.Stats.HistogramBuckets)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.stats = stats
	d.mu.Unlock()
	return nil
}

// TableStats returns the last computed or loaded stats of a table.
func (d *DB) TableStats(name string) (*optimizer.TableStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.tables[name]
	if !ok {
		return nil, errors.Wrapf(tables.ErrNoSuchTable, "%q", name)
	}

	s, ok := d.stats[f.GetID()]
	if !ok {
		return nil, errors.Errorf("no stats for table %q", name)
	}
	return s, nil
}

// SaveStatistics writes the current stats to the data directory with the configured codec.
func (d *DB) SaveStatistics() error {
	codec, err := optimizer.ParseCodec(d.cfg.Stats.SnapshotCodec)
	common.PanicIfErr(err) // validated in Open

	d.mu.Lock()
	stats := make([]*optimizer.TableStats, 0, len(d.stats))
	for _, s := range d.stats {
		stats = append(stats, s)
	}
	d.mu.Unlock()
	sort.Slice(stats, func(i, j int) bool { return stats[i].TableID() < stats[j].TableID() })

	path := filepath.Join(d.cfg.DataDir, statsFileName)
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := optimizer.WriteSnapshot(f, codec, stats); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return f.Close()
}

// LoadStatistics replaces the current stats with the ones saved by SaveStatistics.
func (d *DB) LoadStatistics() error {
	path := filepath.Join(d.cfg.DataDir, statsFileName)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	loaded, err := optimizer.ReadSnapshot(f)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}

	stats := make(map[int32]*optimizer.TableStats, len(loaded))
	for _, s := range loaded {
		stats[s.TableID()] = s
	}

	d.mu.Lock()
	d.stats = stats
	d.mu.Unlock()
	return nil
}

// Close aborts running transactions, flushes every cached page and closes the table files.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.tm.Close()
	if flushErr := d.pool.FlushAllPages(); flushErr != nil && err == nil {
		err = flushErr
	}
	d.lockManager.Stop()

	for _, f := range d.tables {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	level.Info(common.Logger()).Log("msg", "database closed", "dir", d.cfg.DataDir)
	common.SetLogger(log.NewNopLogger())
	if closeErr := d.logFile.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
