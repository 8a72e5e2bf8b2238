package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicate          = errors.New("record already exists")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type Credentials struct {
	Driver            string
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	Path              string
	MigrationsDirPath string
}

type ProductRepoInterface interface {
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	HasStock(ctx context.Context, id int64, quantity int) (bool, error)
	DecreaseStock(ctx context.Context, id int64, quantity int) error
	GetAll(ctx context.Context, limit, offset int) ([]*domain.Product, error)
	Count(ctx context.Context) (int, error)
	GetByCategory(ctx context.Context, category string, limit, offset int) ([]*domain.Product, error)
	Search(ctx context.Context, term string, limit, offset int) ([]*domain.Product, error)
	GetAllCategories(ctx context.Context) ([]string, error)
	GetLowStock(ctx context.Context, threshold int) ([]*domain.Product, error)
	GetOutOfStock(ctx context.Context) ([]*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) (int64, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
	UpdateStock(ctx context.Context, id int64, quantity int) error
}

type OrderRepoInterface interface {
	Create(ctx context.Context, o *domain.Order) (int64, error)
	AddItems(ctx context.Context, orderID int64, items []domain.OrderItem) error
	GetByUserID(ctx context.Context, userID int64) ([]*domain.Order, error)
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
}

type UserRepoInterface interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	EmailExists(ctx context.Context, email string, exceptID int64) (bool, error)
	UsernameExists(ctx context.Context, username string, exceptID int64) (bool, error)
	Create(ctx context.Context, u *domain.User, password string) (int64, error)
	Update(ctx context.Context, u *domain.User) error
	UpdatePassword(ctx context.Context, id int64, password string) error
	Delete(ctx context.Context, id int64) error
	VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error)
}

type OutboxRepoInterface interface {
	Add(ctx context.Context, aggregateID, eventType string, payload []byte) error
	GetUnprocessed(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, id int64) error
}

// Repositories gives access to every table, either directly or inside a transaction.
type Repositories interface {
	Products() ProductRepoInterface
	Orders() OrderRepoInterface
	Users() UserRepoInterface
	Outbox() OutboxRepoInterface
}

type RepoInterface interface {
	Repositories
	WithTx(ctx context.Context, fn func(Repositories) error) error
	Ping(ctx context.Context) error
	Close() error
	RunMigrations(*Credentials) error
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repository struct {
	db     *sql.DB
	driver string
}

func NewRepository(cred *Credentials) (*Repository, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cred.Driver {
	case DriverPostgres, "":
		psqlconn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cred.Host,
			cred.Port,
			cred.User,
			cred.Password,
			cred.DBName)
		db, err = sql.Open("postgres", psqlconn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(100)
		db.SetMaxIdleConns(10)
		cred.Driver = DriverPostgres
	case DriverSQLite:
		dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", cred.Path)
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// sqlite allows one writer; a single connection also keeps :memory: databases shared
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cred.Driver)
	}

	if e2 := db.Ping(); e2 != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	return &Repository{db: db, driver: cred.Driver}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	var (
		driver database.Driver
		err    error
	)
	switch r.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{
			MigrationsTable: "storefront_schema_migrations",
		})
	case DriverSQLite:
		driver, err = migratesqlite.WithInstance(r.db, &migratesqlite.Config{
			MigrationsTable: "storefront_schema_migrations",
		})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", filepath.Join(cred.MigrationsDirPath, r.driver)),
		r.driver,
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Products() ProductRepoInterface {
	return &ProductRepository{db: r.db}
}

func (r *Repository) Orders() OrderRepoInterface {
	return &OrderRepository{db: r.db}
}

func (r *Repository) Users() UserRepoInterface {
	return &UserRepository{db: r.db}
}

func (r *Repository) Outbox() OutboxRepoInterface {
	return &OutboxRepository{db: r.db}
}

// WithTx runs fn inside one transaction. fn must only use the Repositories it
// is given; the sqlite pool has a single connection and would deadlock otherwise.
func (r *Repository) WithTx(ctx context.Context, fn func(Repositories) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit transaction: %w", cErr)
		}
	}()

	return fn(txRepositories{tx: tx})
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type txRepositories struct {
	tx *sql.Tx
}

func (t txRepositories) Products() ProductRepoInterface { return &ProductRepository{db: t.tx} }
func (t txRepositories) Orders() OrderRepoInterface     { return &OrderRepository{db: t.tx} }
func (t txRepositories) Users() UserRepoInterface       { return &UserRepository{db: t.tx} }
func (t txRepositories) Outbox() OutboxRepoInterface    { return &OutboxRepository{db: t.tx} }

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}
