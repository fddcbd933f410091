package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/agentstation/utc"
	"github.com/shopspring/decimal"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store"
)

const timeLayout = time.RFC3339Nano

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const recordColumns = `id, order_id, product_code, product_name, order_date,
	selling_price, order_total, payment_type, prepaid_amount, allocation_ratio,
	allocated_total, collectable_amount, status, claimed_by, claimed_at,
	last_claimed_by, last_claimed_at, clone_status, cloned_order_id,
	is_cloned_row, label_downloaded, handover_at, customer_name,
	product_image_ref, version`

func selectRecords(ctx context.Context, q querier, where string, args ...any) ([]*orders.Record, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+recordColumns+` FROM records `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, errors.WrapResource("query", "records", "", err)
	}
	defer rows.Close()

	var out []*orders.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapResource("iterate", "records", "", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (*orders.Record, error) {
	var (
		r                                          orders.Record
		selling, total, prepaid, allocated, collect string
		payment, status                            string
		claimedAt, lastClaimedAt, handoverAt       string
	)
	err := rows.Scan(
		&r.ID, &r.OrderID, &r.ProductCode, &r.ProductName, &r.OrderDate,
		&selling, &total, &payment, &prepaid, &r.AllocationRatio,
		&allocated, &collect, &status, &r.ClaimedBy, &claimedAt,
		&r.LastClaimedBy, &lastClaimedAt, &r.CloneStatus, &r.ClonedOrderID,
		&r.IsClonedRow, &r.LabelDownloaded, &handoverAt, &r.CustomerName,
		&r.ProductImageRef, &r.Version,
	)
	if err != nil {
		return nil, errors.WrapResource("scan", "record", "", err)
	}

	r.PaymentType = orders.PaymentType(payment)
	if r.Status, err = orders.ParseStatus(status); err != nil {
		return nil, err
	}

	for _, m := range []struct {
		in  string
		out *decimal.Decimal
	}{
		{selling, &r.SellingPrice},
		{total, &r.OrderTotal},
		{prepaid, &r.PrepaidAmount},
		{allocated, &r.AllocatedTotal},
		{collect, &r.CollectableAmount},
	} {
		if *m.out, err = decimal.NewFromString(m.in); err != nil {
			return nil, errors.WrapParse("decimal", "records", err)
		}
	}

	for _, ts := range []struct {
		in  string
		out **utc.Time
	}{
		{claimedAt, &r.ClaimedAt},
		{lastClaimedAt, &r.LastClaimedAt},
		{handoverAt, &r.HandoverAt},
	} {
		if *ts.out, err = parseTime(ts.in); err != nil {
			return nil, errors.WrapParse("timestamp", "records", err)
		}
	}
	return &r, nil
}

func recordArgs(r *orders.Record) []any {
	return []any{
		r.ID, r.OrderID, r.ProductCode, r.ProductName, r.OrderDate,
		r.SellingPrice.String(), r.OrderTotal.String(), string(r.PaymentType),
		r.PrepaidAmount.String(), r.AllocationRatio,
		r.AllocatedTotal.String(), r.CollectableAmount.String(), string(r.Status),
		r.ClaimedBy, formatTime(r.ClaimedAt),
		r.LastClaimedBy, formatTime(r.LastClaimedAt), r.CloneStatus, r.ClonedOrderID,
		r.IsClonedRow, r.LabelDownloaded, formatTime(r.HandoverAt), r.CustomerName,
		r.ProductImageRef, r.Version,
	}
}

func insertRecord(ctx context.Context, q querier, r *orders.Record) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		recordArgs(r)...)
	if err != nil {
		return errors.WrapResource("insert", "record", r.Key().String(), err)
	}
	return nil
}

// updateRecord overwrites the row when its stored version still equals
// expectedVersion.
func updateRecord(ctx context.Context, q querier, r *orders.Record, expectedVersion int64) error {
	args := recordArgs(r)[1:]
	args = append(args, r.ID, expectedVersion)
	res, err := q.ExecContext(ctx,
		`UPDATE records SET
			order_id = ?, product_code = ?, product_name = ?, order_date = ?,
			selling_price = ?, order_total = ?, payment_type = ?, prepaid_amount = ?,
			allocation_ratio = ?, allocated_total = ?, collectable_amount = ?,
			status = ?, claimed_by = ?, claimed_at = ?, last_claimed_by = ?,
			last_claimed_at = ?, clone_status = ?, cloned_order_id = ?,
			is_cloned_row = ?, label_downloaded = ?, handover_at = ?,
			customer_name = ?, product_image_ref = ?, version = ?
		 WHERE id = ? AND version = ?`,
		args...)
	if err != nil {
		return errors.WrapResource("update", "record", r.Key().String(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WrapResource("update", "record", r.Key().String(), err)
	}
	if n == 0 {
		var actual int64
		if err := q.QueryRowContext(ctx, `SELECT version FROM records WHERE id = ?`, r.ID).Scan(&actual); err != nil {
			return errors.NewNotFoundError("record", strconv.FormatInt(r.ID, 10))
		}
		return errors.NewConflictError(r.ID, expectedVersion, actual)
	}
	return nil
}

func highWater(ctx context.Context, q querier) (int64, error) {
	var high int64
	err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, highWaterKey).Scan(&high)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.WrapResource("read", "high water mark", "", err)
	}
	return high, nil
}

func setHighWater(ctx context.Context, q querier, high int64) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = MAX(value, excluded.value)`,
		highWaterKey, high)
	if err != nil {
		return errors.WrapResource("write", "high water mark", "", err)
	}
	return nil
}

func archiveRecord(ctx context.Context, q querier, r *orders.Record, at string) error {
	body, err := json.Marshal(r)
	if err != nil {
		return errors.WrapParse("json", "archive", err)
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO archive (record_id, archived_at, body) VALUES (?, ?, ?)`,
		r.ID, at, string(body)); err != nil {
		return errors.WrapResource("archive", "record", r.Key().String(), err)
	}
	return nil
}

func trimArchive(ctx context.Context, q querier, keep int) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM archive WHERE seq NOT IN (SELECT seq FROM archive ORDER BY seq DESC LIMIT ?)`, keep)
	if err != nil {
		return errors.WrapResource("trim", "archive", "", err)
	}
	return nil
}

// Archived implements store.Archiver. Newest rows come first.
func (s *Store) Archived(ctx context.Context, limit int) ([]store.ArchivedRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT archived_at, body FROM archive ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.WrapResource("query", "archive", "", err)
	}
	defer rows.Close()

	var out []store.ArchivedRecord
	for rows.Next() {
		var at, body string
		if err := rows.Scan(&at, &body); err != nil {
			return nil, errors.WrapResource("scan", "archive", "", err)
		}
		r := &orders.Record{}
		if err := json.Unmarshal([]byte(body), r); err != nil {
			return nil, errors.WrapParse("json", "archive", err)
		}
		ts, err := parseTime(at)
		if err != nil || ts == nil {
			return nil, errors.NewValidationError("archived_at", at, "not an RFC 3339 timestamp")
		}
		out = append(out, store.ArchivedRecord{Record: r, ArchivedAt: *ts})
	}
	return out, rows.Err()
}

// PutPayload implements store.PayloadCache.
func (s *Store) PutPayload(ctx context.Context, body []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapResource("begin", "transaction", "payload", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO payloads (fetched_at, body) VALUES (?, ?)`, nowString(), body); err != nil {
		return errors.WrapResource("insert", "payload", "", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM payloads WHERE seq NOT IN (SELECT seq FROM payloads ORDER BY seq DESC LIMIT ?)`,
		s.payloadsRetained); err != nil {
		return errors.WrapResource("trim", "payloads", "", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapResource("commit", "transaction", "payload", err)
	}
	return nil
}

// LatestPayload implements store.PayloadCache.
func (s *Store) LatestPayload(ctx context.Context) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM payloads ORDER BY seq DESC LIMIT 1`).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("payload", "latest")
	}
	if err != nil {
		return nil, errors.WrapResource("query", "payloads", "", err)
	}
	return body, nil
}

func nowString() string {
	return utc.Now().Time.UTC().Format(timeLayout)
}

func formatTime(t *utc.Time) string {
	if t == nil {
		return ""
	}
	return t.Time.UTC().Format(timeLayout)
}

func parseTime(s string) (*utc.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return nil, err
	}
	u := utc.New(t)
	return &u, nil
}
