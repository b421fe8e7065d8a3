package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertMonitorSQL = `INSERT INTO monitor_configs (
        name, url, keywords, keyword_mode, interval_minutes, active
    ) VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id;`

	listMonitorsSQL = `SELECT id, name, url, keywords, keyword_mode, interval_minutes, active
    FROM monitor_configs
    ORDER BY id;`

	listActiveMonitorsSQL = `SELECT id, name, url, keywords, keyword_mode, interval_minutes, active
    FROM monitor_configs
    WHERE active
    ORDER BY id;`

	getMonitorSQL = `SELECT id, name, url, keywords, keyword_mode, interval_minutes, active
    FROM monitor_configs
    WHERE id = $1;`

	updateMonitorSQL = `UPDATE monitor_configs
    SET name = $2,
        url = $3,
        keywords = $4,
        keyword_mode = $5,
        interval_minutes = $6,
        active = $7
    WHERE id = $1;`

	deleteMonitorSQL = `DELETE FROM monitor_configs WHERE id = $1;`

	insertListingSQL = `INSERT INTO auction_items (
        offer_id, title, description, current_price, image_url, auction_url,
        lot_number, end_date, visits, category_name, sub_category_name,
        location, seller, auction_name, auctioneer, monitor_config_id, archived
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
    )
    RETURNING id;`

	listingColumns = `id, offer_id, title, description, current_price, image_url,
        auction_url, lot_number, end_date, visits, category_name,
        sub_category_name, location, seller, auction_name, auctioneer,
        monitor_config_id, archived, created_at, updated_at`

	findListingByOfferIDSQL = `SELECT ` + listingColumns + `
    FROM auction_items
    WHERE offer_id = $1;`

	getListingSQL = `SELECT ` + listingColumns + `
    FROM auction_items
    WHERE id = $1;`

	updateListingPriceSQL = `UPDATE auction_items
    SET current_price = $2, updated_at = now()
    WHERE id = $1;`

	listListingsSQL = `SELECT ` + listingColumns + `
    FROM auction_items
    WHERE archived = $1
    ORDER BY updated_at DESC;`

	searchListingsSQL = `SELECT ` + listingColumns + `
    FROM auction_items
    WHERE title ILIKE '%' || $1 || '%'
       OR description ILIKE '%' || $1 || '%'
    ORDER BY updated_at DESC;`

	archiveListingSQL = `UPDATE auction_items
    SET archived = $2, updated_at = now()
    WHERE id = $1;`

	insertPriceChangeSQL = `INSERT INTO price_histories (
        auction_item_id, old_price, new_price
    ) VALUES ($1,$2,$3)
    RETURNING id;`

	listPriceChangesSQL = `SELECT id, auction_item_id, old_price, new_price, changed_at
    FROM price_histories
    WHERE auction_item_id = $1
    ORDER BY changed_at DESC;`

	getSubscriptionSQL = `SELECT id, bot_token, chat_id, notify_new_items, notify_price_changes
    FROM telegram_configs
    ORDER BY id
    LIMIT 1;`

	updateSubscriptionSQL = `UPDATE telegram_configs
    SET bot_token = $2,
        chat_id = $3,
        notify_new_items = $4,
        notify_price_changes = $5
    WHERE id = $1;`

	insertSubscriptionSQL = `INSERT INTO telegram_configs (
        bot_token, chat_id, notify_new_items, notify_price_changes
    ) VALUES ($1,$2,$3,$4)
    RETURNING id;`
)

// MonitorStore defines operations on monitor configurations.
type MonitorStore interface {
	CreateMonitor(ctx context.Context, m Monitor) (int64, error)
	ListMonitors(ctx context.Context) ([]Monitor, error)
	ListActiveMonitors(ctx context.Context) ([]Monitor, error)
	GetMonitor(ctx context.Context, id int64) (*Monitor, error)
	UpdateMonitor(ctx context.Context, id int64, m Monitor) (bool, error)
	DeleteMonitor(ctx context.Context, id int64) (bool, error)
}

// ListingStore defines operations for listing persistence.
type ListingStore interface {
	FindListingByOfferID(ctx context.Context, offerID string) (*Listing, error)
	GetListing(ctx context.Context, id int64) (*Listing, error)
	CreateListing(ctx context.Context, l Listing) (int64, error)
	UpdateListingPrice(ctx context.Context, id int64, price decimal.Decimal) (bool, error)
	ListListings(ctx context.Context, archived bool) ([]Listing, error)
	SearchListings(ctx context.Context, query string) ([]Listing, error)
	ArchiveListing(ctx context.Context, id int64, archived bool) (bool, error)
}

// HistoryStore defines operations on the append-only price history log.
type HistoryStore interface {
	AppendPriceChange(ctx context.Context, change PriceChange) (int64, error)
	ListPriceChanges(ctx context.Context, listingID int64) ([]PriceChange, error)
}

// SubscriptionStore defines access to the single notification subscription.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context) (*Subscription, error)
	UpsertSubscription(ctx context.Context, sub Subscription) (int64, error)
}

// Store aggregates access to monitors, listings, history, and the
// notification subscription over one connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// CreateMonitor inserts a monitor configuration and returns its id.
func (s *Store) CreateMonitor(ctx context.Context, m Monitor) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var id int64
	err = pool.QueryRow(ctx, insertMonitorSQL,
		m.Name, m.URL, m.Keywords, m.KeywordMode, m.IntervalMinutes, m.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create monitor: %w", err)
	}
	return id, nil
}

// ListMonitors returns every monitor configuration.
func (s *Store) ListMonitors(ctx context.Context) ([]Monitor, error) {
	return s.queryMonitors(ctx, listMonitorsSQL)
}

// ListActiveMonitors returns the monitors eligible for scheduling.
func (s *Store) ListActiveMonitors(ctx context.Context) ([]Monitor, error) {
	return s.queryMonitors(ctx, listActiveMonitorsSQL)
}

func (s *Store) queryMonitors(ctx context.Context, query string) ([]Monitor, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query)
	if queryErr != nil {
		return nil, fmt.Errorf("list monitors: %w", queryErr)
	}
	defer rows.Close()

	monitors := make([]Monitor, 0)
	for rows.Next() {
		var m Monitor
		if scanErr := rows.Scan(&m.ID, &m.Name, &m.URL, &m.Keywords, &m.KeywordMode, &m.IntervalMinutes, &m.Active); scanErr != nil {
			return nil, scanErr
		}
		monitors = append(monitors, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return monitors, nil
}

// GetMonitor fetches one monitor by id, nil when absent.
func (s *Store) GetMonitor(ctx context.Context, id int64) (*Monitor, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var m Monitor
	err = pool.QueryRow(ctx, getMonitorSQL, id).
		Scan(&m.ID, &m.Name, &m.URL, &m.Keywords, &m.KeywordMode, &m.IntervalMinutes, &m.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get monitor: %w", err)
	}
	return &m, nil
}

// UpdateMonitor replaces a monitor configuration. Returns false when the id
// does not exist.
func (s *Store) UpdateMonitor(ctx context.Context, id int64, m Monitor) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	tag, execErr := pool.Exec(ctx, updateMonitorSQL,
		id, m.Name, m.URL, m.Keywords, m.KeywordMode, m.IntervalMinutes, m.Active,
	)
	if execErr != nil {
		return false, fmt.Errorf("update monitor: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteMonitor removes a monitor configuration. Its listings remain.
func (s *Store) DeleteMonitor(ctx context.Context, id int64) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	tag, execErr := pool.Exec(ctx, deleteMonitorSQL, id)
	if execErr != nil {
		return false, fmt.Errorf("delete monitor: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}

// FindListingByOfferID looks a listing up by its external offer id, nil when
// never observed.
func (s *Store) FindListingByOfferID(ctx context.Context, offerID string) (*Listing, error) {
	return s.queryListing(ctx, findListingByOfferIDSQL, offerID)
}

// GetListing fetches a listing by its internal id, nil when absent.
func (s *Store) GetListing(ctx context.Context, id int64) (*Listing, error) {
	return s.queryListing(ctx, getListingSQL, id)
}

func (s *Store) queryListing(ctx context.Context, query string, arg any) (*Listing, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, query, arg)
	listing, scanErr := scanListing(row)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return nil, nil
	}
	if scanErr != nil {
		return nil, fmt.Errorf("query listing: %w", scanErr)
	}
	return &listing, nil
}

// CreateListing persists a newly observed listing and returns its id.
func (s *Store) CreateListing(ctx context.Context, l Listing) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var id int64
	err = pool.QueryRow(ctx, insertListingSQL,
		l.OfferID,
		l.Title,
		l.Description,
		l.CurrentPrice.String(),
		l.ImageURL,
		l.AuctionURL,
		l.LotNumber,
		l.EndDate,
		l.Visits,
		l.CategoryName,
		l.SubCategoryName,
		l.Location,
		l.Seller,
		l.AuctionName,
		l.Auctioneer,
		l.MonitorID,
		l.Archived,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create listing: %w", err)
	}
	return id, nil
}

// UpdateListingPrice mutates the stored price and bumps the updated
// timestamp. Returns false when the id does not exist.
func (s *Store) UpdateListingPrice(ctx context.Context, id int64, price decimal.Decimal) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	tag, execErr := pool.Exec(ctx, updateListingPriceSQL, id, price.String())
	if execErr != nil {
		return false, fmt.Errorf("update listing price: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}

// ListListings returns listings by archived state, most recently updated
// first.
func (s *Store) ListListings(ctx context.Context, archived bool) ([]Listing, error) {
	return s.queryListings(ctx, listListingsSQL, archived)
}

// SearchListings matches the query against title and description.
func (s *Store) SearchListings(ctx context.Context, query string) ([]Listing, error) {
	return s.queryListings(ctx, searchListingsSQL, query)
}

func (s *Store) queryListings(ctx context.Context, query string, arg any) ([]Listing, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, arg)
	if queryErr != nil {
		return nil, fmt.Errorf("list listings: %w", queryErr)
	}
	defer rows.Close()

	listings := make([]Listing, 0)
	for rows.Next() {
		listing, scanErr := scanListing(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		listings = append(listings, listing)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return listings, nil
}

// ArchiveListing toggles the archived flag. Returns false when the id does
// not exist.
func (s *Store) ArchiveListing(ctx context.Context, id int64, archived bool) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	tag, execErr := pool.Exec(ctx, archiveListingSQL, id, archived)
	if execErr != nil {
		return false, fmt.Errorf("archive listing: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}

// AppendPriceChange records one immutable price-history entry.
func (s *Store) AppendPriceChange(ctx context.Context, change PriceChange) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var id int64
	err = pool.QueryRow(ctx, insertPriceChangeSQL,
		change.ListingID,
		change.OldPrice.String(),
		change.NewPrice.String(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append price change: %w", err)
	}
	return id, nil
}

// ListPriceChanges returns a listing's history, most recent first.
func (s *Store) ListPriceChanges(ctx context.Context, listingID int64) ([]PriceChange, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPriceChangesSQL, listingID)
	if queryErr != nil {
		return nil, fmt.Errorf("list price changes: %w", queryErr)
	}
	defer rows.Close()

	changes := make([]PriceChange, 0)
	for rows.Next() {
		var c PriceChange
		if scanErr := rows.Scan(&c.ID, &c.ListingID, &c.OldPrice, &c.NewPrice, &c.ChangedAt); scanErr != nil {
			return nil, scanErr
		}
		changes = append(changes, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return changes, nil
}

// GetSubscription returns the current notification subscription, nil when
// none is configured.
func (s *Store) GetSubscription(ctx context.Context) (*Subscription, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var sub Subscription
	err = pool.QueryRow(ctx, getSubscriptionSQL).
		Scan(&sub.ID, &sub.BotToken, &sub.ChatID, &sub.NotifyNewItems, &sub.NotifyPriceChanges)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

// UpsertSubscription creates or replaces the single subscription record.
func (s *Store) UpsertSubscription(ctx context.Context, sub Subscription) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	existing, err := s.GetSubscription(ctx)
	if err != nil {
		return 0, err
	}

	if existing != nil {
		_, execErr := pool.Exec(ctx, updateSubscriptionSQL,
			existing.ID, sub.BotToken, sub.ChatID, sub.NotifyNewItems, sub.NotifyPriceChanges,
		)
		if execErr != nil {
			return 0, fmt.Errorf("update subscription: %w", execErr)
		}
		return existing.ID, nil
	}

	var id int64
	err = pool.QueryRow(ctx, insertSubscriptionSQL,
		sub.BotToken, sub.ChatID, sub.NotifyNewItems, sub.NotifyPriceChanges,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert subscription: %w", err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (Listing, error) {
	var l Listing
	err := row.Scan(
		&l.ID,
		&l.OfferID,
		&l.Title,
		&l.Description,
		&l.CurrentPrice,
		&l.ImageURL,
		&l.AuctionURL,
		&l.LotNumber,
		&l.EndDate,
		&l.Visits,
		&l.CategoryName,
		&l.SubCategoryName,
		&l.Location,
		&l.Seller,
		&l.AuctionName,
		&l.Auctioneer,
		&l.MonitorID,
		&l.Archived,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

var (
	_ MonitorStore      = (*Store)(nil)
	_ ListingStore      = (*Store)(nil)
	_ HistoryStore      = (*Store)(nil)
	_ SubscriptionStore = (*Store)(nil)
)
