package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/govm-net/promptheist/context"
	"github.com/govm-net/promptheist/core"
	"github.com/govm-net/promptheist/types"
)

const (
	defaultDBPath   = "./sqlite.db"
	defaultGasLimit = 10000000
)

type DBBlock struct {
	gorm.Model
	Height uint64 `gorm:"column:height;not null;unique;index"`
	Time   int64  `gorm:"column:block_time;not null"`
	Hash   string `gorm:"column:block_hash;not null;index;size:66"`
}

func (DBBlock) TableName() string {
	return "blocks"
}

type DBTransaction struct {
	gorm.Model
	Hash        string `gorm:"column:tx_hash;not null;unique;index;size:66"`
	BlockHeight uint64 `gorm:"column:block_height;not null;index"`
	FromAddress string `gorm:"column:from_address;not null;index;size:42"`
	ToAddress   string `gorm:"column:to_address;not null;index;size:42"`
	Value       uint64 `gorm:"column:value;not null"`
}

func (DBTransaction) TableName() string {
	return "transactions"
}

// DBObject represents the object in database
type DBObject struct {
	gorm.Model
	ObjectID string `gorm:"column:object_id;not null;unique;index;size:66"`
	Owner    string `gorm:"column:owner_address;not null;index;size:42"`
	Contract string `gorm:"column:contract_address;not null;index;size:42"`
}

func (DBObject) TableName() string {
	return "objects"
}

// DBObjectField represents a field of an object
type DBObjectField struct {
	gorm.Model
	ObjectID string `gorm:"column:object_id;not null;index;size:66"`
	Key      string `gorm:"column:field_key;not null;index;size:255"`
	Value    []byte `gorm:"column:field_value;type:blob;not null"`
}

func (DBObjectField) TableName() string {
	return "object_fields"
}

// DBBalance represents the balance in database
type DBBalance struct {
	Address string `gorm:"column:address;primaryKey;size:42"`
	Amount  uint64 `gorm:"column:balance;not null;default:0"`
}

func (DBBalance) TableName() string {
	return "balances"
}

// DBEvent represents an event in the database
type DBEvent struct {
	gorm.Model
	BlockHeight uint64 `gorm:"column:block_height;not null;index"`
	TxHash      string `gorm:"column:tx_hash;not null;index;size:66"`
	Contract    string `gorm:"column:contract_address;not null;index;size:42"`
	EventName   string `gorm:"column:event_name;not null;index;size:255"`
	KeyValues   []byte `gorm:"column:key_values;type:blob;not null"` // JSON encoded key-value pairs
}

func (DBEvent) TableName() string {
	return "events"
}

// Context implements the BlockchainContext interface using SQLite with GORM
type Context struct {
	db *gorm.DB
	tx *gorm.DB // open call journal

	// Runtime state
	sender       core.Address
	contract     core.Address
	gasLimit     int64
	currentTx    *DBTransaction
	currentBlock *DBBlock
	nonce        uint64
}

func init() {
	if err := context.Register(context.DBContextType, NewContext); err != nil {
		panic(err)
	}
}

// NewContext opens (or creates) the SQLite database named by params["db_path"]
func NewContext(params map[string]any) (types.BlockchainContext, error) {
	dbPath := defaultDBPath
	if path, ok := params["db_path"].(string); ok && path != "" {
		dbPath = path
	}
	return Open(dbPath)
}

// Open returns a Context backed by the database at dbPath.
func Open(dbPath string) (*Context, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := &Context{db: db, gasLimit: defaultGasLimit}
	if err := ctx.initDB(); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (c *Context) initDB() error {
	err := c.db.AutoMigrate(
		&DBBlock{},
		&DBTransaction{},
		&DBObject{},
		&DBObjectField{},
		&DBBalance{},
		&DBEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// DB exposes the underlying gorm handle so other stores can share the file.
func (c *Context) DB() *gorm.DB {
	return c.db
}

// Close closes the database connection
func (c *Context) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// conn is the open journal transaction, or the database outside a call
func (c *Context) conn() *gorm.DB {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

// Begin opens a database transaction that holds the writes of one call
func (c *Context) Begin() error {
	if c.tx != nil {
		return core.ErrJournalOpen
	}
	tx := c.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	c.tx = tx
	return nil
}

// Commit keeps the writes made since Begin
func (c *Context) Commit() error {
	if c.tx == nil {
		return core.ErrNoJournal
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the writes made since Begin
func (c *Context) Rollback() error {
	if c.tx == nil {
		return core.ErrNoJournal
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Rollback().Error; err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// SetBlockInfo records the block and makes it current
func (c *Context) SetBlockInfo(height uint64, time int64, hash core.Hash) error {
	block := DBBlock{Height: height, Time: time, Hash: hash.String()}
	err := c.conn().Where("height = ?", height).
		Assign(map[string]any{"block_time": time, "block_hash": hash.String()}).
		FirstOrCreate(&block).Error
	if err != nil {
		return fmt.Errorf("failed to save block: %w", err)
	}
	block.Time, block.Hash = time, hash.String()
	c.currentBlock = &block
	c.nonce = 0
	return nil
}

// SetTransactionInfo records the transaction and makes it current
func (c *Context) SetTransactionInfo(hash core.Hash, from, to core.Address, value uint64) error {
	tx := DBTransaction{
		Hash:        hash.String(),
		BlockHeight: c.BlockHeight(),
		FromAddress: from.String(),
		ToAddress:   to.String(),
		Value:       value,
	}
	err := c.conn().Where("tx_hash = ?", hash.String()).
		Assign(map[string]any{
			"block_height": c.BlockHeight(),
			"from_address": from.String(),
			"to_address":   to.String(),
			"value":        value,
		}).
		FirstOrCreate(&tx).Error
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	tx.FromAddress, tx.ToAddress, tx.Value = from.String(), to.String(), value
	c.currentTx = &tx
	c.sender = from
	c.contract = to
	c.nonce = 0
	return nil
}

// WithBlock makes an already stored block current
func (c *Context) WithBlock(height uint64) error {
	var block DBBlock
	if err := c.conn().Where("height = ?", height).First(&block).Error; err != nil {
		return fmt.Errorf("failed to get block: %w", err)
	}
	c.currentBlock = &block
	c.nonce = 0
	return nil
}

// WithTransaction makes an already stored transaction current
func (c *Context) WithTransaction(hash core.Hash) error {
	var tx DBTransaction
	if err := c.conn().Where("tx_hash = ?", hash.String()).First(&tx).Error; err != nil {
		return fmt.Errorf("failed to get transaction: %w", err)
	}
	c.currentTx = &tx
	c.sender = core.AddressFromString(tx.FromAddress)
	c.contract = core.AddressFromString(tx.ToAddress)
	c.nonce = 0
	return nil
}

func (c *Context) BlockHeight() uint64 {
	if c.currentBlock != nil {
		return c.currentBlock.Height
	}
	var height uint64
	c.conn().Model(&DBBlock{}).Select("COALESCE(MAX(height), 0)").Scan(&height)
	return height
}

func (c *Context) BlockTime() int64 {
	if c.currentBlock != nil {
		return c.currentBlock.Time
	}
	return 0
}

func (c *Context) ContractAddress() core.Address {
	return c.contract
}

func (c *Context) TransactionHash() core.Hash {
	if c.currentTx != nil {
		return core.HashFromString(c.currentTx.Hash)
	}
	return core.Hash{}
}

func (c *Context) Sender() core.Address {
	return c.sender
}

func (c *Context) SetGasLimit(limit int64) {
	c.gasLimit = limit
}

func (c *Context) GetGas() int64 {
	return c.gasLimit
}

// Balance returns 0 for unknown accounts
func (c *Context) Balance(addr core.Address) uint64 {
	var balance DBBalance
	err := c.conn().Where("address = ?", addr.String()).First(&balance).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Error("failed to get balance", "address", addr, "error", err)
		}
		return 0
	}
	return balance.Amount
}

// SetBalance seeds an account balance.
func (c *Context) SetBalance(addr core.Address, amount uint64) error {
	return c.conn().Save(&DBBalance{Address: addr.String(), Amount: amount}).Error
}

// Transfer moves amount between accounts in one database transaction
func (c *Context) Transfer(contract, from, to core.Address, amount uint64) error {
	return c.conn().Transaction(func(tx *gorm.DB) error {
		var fromBalance DBBalance
		err := tx.Where("address = ?", from.String()).First(&fromBalance).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.ErrInsufficientFunds
		} else if err != nil {
			return fmt.Errorf("failed to get sender balance: %w", err)
		}
		if fromBalance.Amount < amount {
			return core.ErrInsufficientFunds
		}

		if err := tx.Model(&DBBalance{}).Where("address = ?", from.String()).
			Update("balance", fromBalance.Amount-amount).Error; err != nil {
			return fmt.Errorf("failed to update sender balance: %w", err)
		}

		var toBalance DBBalance
		err = tx.Where("address = ?", to.String()).First(&toBalance).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&DBBalance{Address: to.String(), Amount: amount}).Error; err != nil {
				return fmt.Errorf("failed to create recipient balance: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to get recipient balance: %w", err)
		default:
			if err := tx.Model(&DBBalance{}).Where("address = ?", to.String()).
				Update("balance", toBalance.Amount+amount).Error; err != nil {
				return fmt.Errorf("failed to update recipient balance: %w", err)
			}
		}
		return nil
	})
}

// CreateObject creates an object whose id is derived from the current transaction
func (c *Context) CreateObject(contract core.Address) (types.VMObject, error) {
	c.nonce++
	str := fmt.Sprintf("%s:%s:%s:%d", c.TransactionHash(), contract, c.sender, c.nonce)
	return c.CreateObjectWithID(contract, core.ObjectID(core.GetHash([]byte(str))))
}

// CreateObjectWithID creates an object owned by contract
func (c *Context) CreateObjectWithID(contract core.Address, id core.ObjectID) (types.VMObject, error) {
	dbObj := &DBObject{
		Owner:    contract.String(),
		Contract: contract.String(),
		ObjectID: id.String(),
	}
	if err := c.conn().Create(dbObj).Error; err != nil {
		return nil, fmt.Errorf("failed to create object: %w", err)
	}
	return &Object{ctx: c, id: id, owner: contract, contract: contract}, nil
}

func (c *Context) GetObject(contract core.Address, id core.ObjectID) (types.VMObject, error) {
	var dbObj DBObject
	err := c.conn().Where("object_id = ? AND contract_address = ?", id.String(), contract.String()).First(&dbObj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return &Object{
		ctx:      c,
		id:       id,
		owner:    core.AddressFromString(dbObj.Owner),
		contract: contract,
	}, nil
}

func (c *Context) GetObjectWithOwner(contract, owner core.Address) (types.VMObject, error) {
	var dbObj DBObject
	err := c.conn().Where("owner_address = ? AND contract_address = ?", owner.String(), contract.String()).First(&dbObj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return &Object{
		ctx:      c,
		id:       core.IDFromString(dbObj.ObjectID),
		owner:    owner,
		contract: contract,
	}, nil
}

// DeleteObject removes the object and its fields
func (c *Context) DeleteObject(contract core.Address, id core.ObjectID) error {
	return c.conn().Transaction(func(tx *gorm.DB) error {
		result := tx.Unscoped().Where("object_id = ? AND contract_address = ?", id.String(), contract.String()).Delete(&DBObject{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete object: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return core.ErrObjectNotFound
		}
		if err := tx.Unscoped().Where("object_id = ?", id.String()).Delete(&DBObjectField{}).Error; err != nil {
			return fmt.Errorf("failed to delete object fields: %w", err)
		}
		return nil
	})
}

// Log persists the event and mirrors it to slog
func (c *Context) Log(contract core.Address, eventName string, keyValues ...any) {
	data, err := json.Marshal(keyValues)
	if err != nil {
		slog.Error("Failed to marshal event data", "error", err)
		return
	}

	event := &DBEvent{
		BlockHeight: c.BlockHeight(),
		TxHash:      c.TransactionHash().String(),
		Contract:    contract.String(),
		EventName:   eventName,
		KeyValues:   data,
	}
	if err := c.conn().Create(event).Error; err != nil {
		slog.Error("Failed to save event", "error", err)
		return
	}

	params := []any{
		"block", event.BlockHeight,
		"tx", event.TxHash,
		"contract", contract,
		"event", eventName,
	}
	params = append(params, keyValues...)
	slog.Info("Contract event", params...)
}

// Events lists the stored events of a contract in insertion order
func (c *Context) Events(contract core.Address) ([]DBEvent, error) {
	var events []DBEvent
	err := c.conn().Where("contract_address = ?", contract.String()).Order("id").Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// Object implements the VMObject interface
type Object struct {
	ctx      *Context
	id       core.ObjectID
	owner    core.Address
	contract core.Address
}

func (o *Object) ID() core.ObjectID {
	return o.id
}

func (o *Object) Owner() core.Address {
	return o.owner
}

func (o *Object) Contract() core.Address {
	return o.contract
}

func (o *Object) SetOwner(contract, sender, addr core.Address) error {
	if contract != o.contract {
		return fmt.Errorf("%w: invalid contract", core.ErrUnauthorized)
	}
	if sender != o.owner && contract != o.owner {
		return fmt.Errorf("%w: not owner", core.ErrUnauthorized)
	}

	result := o.ctx.conn().Model(&DBObject{}).
		Where("object_id = ? AND contract_address = ?", o.id.String(), o.contract.String()).
		Update("owner_address", addr.String())
	if result.Error != nil {
		return fmt.Errorf("failed to update owner: %w", result.Error)
	}
	o.owner = addr
	return nil
}

func (o *Object) Get(contract core.Address, field string) ([]byte, error) {
	if contract != o.contract {
		return nil, fmt.Errorf("%w: invalid contract", core.ErrUnauthorized)
	}

	var dbField DBObjectField
	err := o.ctx.conn().Where("object_id = ? AND field_key = ?", o.id.String(), field).First(&dbField).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", core.ErrFieldNotFound, field)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get field: %w", err)
	}
	return dbField.Value, nil
}

func (o *Object) Set(contract, sender core.Address, field string, value []byte) error {
	if contract != o.contract {
		return fmt.Errorf("%w: invalid contract", core.ErrUnauthorized)
	}
	if sender != o.owner && contract != o.owner {
		return fmt.Errorf("%w: not owner", core.ErrUnauthorized)
	}
	if value == nil {
		value = []byte{}
	}

	err := o.ctx.conn().Where("object_id = ? AND field_key = ?", o.id.String(), field).
		Assign(map[string]any{"field_value": value}).
		FirstOrCreate(&DBObjectField{
			ObjectID: o.id.String(),
			Key:      field,
			Value:    value,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update field: %w", err)
	}
	return nil
}
