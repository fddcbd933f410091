package files

import (
	"time"

	"github.com/agentstation/utc"
	"github.com/shopspring/decimal"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store"
)

const (
	documentVersion = 1
	timeLayout      = time.RFC3339Nano
)

// document is the on-disk layout of the records file.
type document struct {
	Version   int          `yaml:"version"`
	HighWater int64        `yaml:"high_water"`
	Records   []recordDTO  `yaml:"records"`
	Archive   []archiveDTO `yaml:"archive,omitempty"`
}

type archiveDTO struct {
	ArchivedAt string    `yaml:"archived_at"`
	Record     recordDTO `yaml:"record"`
}

// recordDTO keeps money and timestamps as strings so the file round-trips
// exactly.
type recordDTO struct {
	ID          int64  `yaml:"id"`
	OrderID     string `yaml:"order_id"`
	ProductCode string `yaml:"product_code"`
	ProductName string `yaml:"product_name"`
	OrderDate   string `yaml:"order_date"`

	SellingPrice      string `yaml:"selling_price"`
	OrderTotal        string `yaml:"order_total"`
	PaymentType       string `yaml:"payment_type"`
	PrepaidAmount     string `yaml:"prepaid_amount"`
	AllocationRatio   int64  `yaml:"allocation_ratio"`
	AllocatedTotal    string `yaml:"allocated_total"`
	CollectableAmount string `yaml:"collectable_amount"`

	Status          string `yaml:"status"`
	ClaimedBy       string `yaml:"claimed_by,omitempty"`
	ClaimedAt       string `yaml:"claimed_at,omitempty"`
	LastClaimedBy   string `yaml:"last_claimed_by,omitempty"`
	LastClaimedAt   string `yaml:"last_claimed_at,omitempty"`
	CloneStatus     string `yaml:"clone_status,omitempty"`
	ClonedOrderID   string `yaml:"cloned_order_id,omitempty"`
	IsClonedRow     bool   `yaml:"is_cloned_row,omitempty"`
	LabelDownloaded bool   `yaml:"label_downloaded,omitempty"`
	HandoverAt      string `yaml:"handover_at,omitempty"`

	CustomerName    string `yaml:"customer_name,omitempty"`
	ProductImageRef string `yaml:"product_image_ref,omitempty"`

	Version int64 `yaml:"version"`
}

func toDTO(r *orders.Record) recordDTO {
	return recordDTO{
		ID:                r.ID,
		OrderID:           r.OrderID,
		ProductCode:       r.ProductCode,
		ProductName:       r.ProductName,
		OrderDate:         r.OrderDate,
		SellingPrice:      r.SellingPrice.String(),
		OrderTotal:        r.OrderTotal.String(),
		PaymentType:       string(r.PaymentType),
		PrepaidAmount:     r.PrepaidAmount.String(),
		AllocationRatio:   r.AllocationRatio,
		AllocatedTotal:    r.AllocatedTotal.String(),
		CollectableAmount: r.CollectableAmount.String(),
		Status:            string(r.Status),
		ClaimedBy:         r.ClaimedBy,
		ClaimedAt:         formatTime(r.ClaimedAt),
		LastClaimedBy:     r.LastClaimedBy,
		LastClaimedAt:     formatTime(r.LastClaimedAt),
		CloneStatus:       r.CloneStatus,
		ClonedOrderID:     r.ClonedOrderID,
		IsClonedRow:       r.IsClonedRow,
		LabelDownloaded:   r.LabelDownloaded,
		HandoverAt:        formatTime(r.HandoverAt),
		CustomerName:      r.CustomerName,
		ProductImageRef:   r.ProductImageRef,
		Version:           r.Version,
	}
}

func (d recordDTO) record() (*orders.Record, error) {
	r := orders.NewRecord(d.ID, orders.Key{OrderID: d.OrderID, ProductCode: d.ProductCode})
	r.ProductName = d.ProductName
	r.OrderDate = d.OrderDate
	r.PaymentType = orders.PaymentType(d.PaymentType)
	r.AllocationRatio = d.AllocationRatio
	r.ClaimedBy = d.ClaimedBy
	r.LastClaimedBy = d.LastClaimedBy
	r.CloneStatus = d.CloneStatus
	r.ClonedOrderID = d.ClonedOrderID
	r.IsClonedRow = d.IsClonedRow
	r.LabelDownloaded = d.LabelDownloaded
	r.CustomerName = d.CustomerName
	r.ProductImageRef = d.ProductImageRef
	r.Version = d.Version

	status, err := orders.ParseStatus(d.Status)
	if err != nil {
		return nil, err
	}
	r.Status = status

	money := []struct {
		field string
		in    string
		out   *decimal.Decimal
	}{
		{"selling_price", d.SellingPrice, &r.SellingPrice},
		{"order_total", d.OrderTotal, &r.OrderTotal},
		{"prepaid_amount", d.PrepaidAmount, &r.PrepaidAmount},
		{"allocated_total", d.AllocatedTotal, &r.AllocatedTotal},
		{"collectable_amount", d.CollectableAmount, &r.CollectableAmount},
	}
	for _, m := range money {
		if m.in == "" {
			continue
		}
		v, err := decimal.NewFromString(m.in)
		if err != nil {
			return nil, errors.NewValidationError(m.field, m.in, "not a decimal")
		}
		*m.out = v
	}

	times := []struct {
		field string
		in    string
		out   **utc.Time
	}{
		{"claimed_at", d.ClaimedAt, &r.ClaimedAt},
		{"last_claimed_at", d.LastClaimedAt, &r.LastClaimedAt},
		{"handover_at", d.HandoverAt, &r.HandoverAt},
	}
	for _, ts := range times {
		v, err := parseTime(ts.in)
		if err != nil {
			return nil, errors.NewValidationError(ts.field, ts.in, "not an RFC 3339 timestamp")
		}
		*ts.out = v
	}
	return r, nil
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

func fromDocument(doc *document) (*store.Snapshot, []store.ArchivedRecord, error) {
	snap := &store.Snapshot{HighWater: doc.HighWater}
	for i, d := range doc.Records {
		r, err := d.record()
		if err != nil {
			return nil, nil, errors.WrapResource("decode", "record", orders.Key{OrderID: doc.Records[i].OrderID, ProductCode: doc.Records[i].ProductCode}.String(), err)
		}
		snap.Records = append(snap.Records, r)
	}
	archive := make([]store.ArchivedRecord, 0, len(doc.Archive))
	for _, a := range doc.Archive {
		r, err := a.Record.record()
		if err != nil {
			return nil, nil, errors.WrapResource("decode", "archived record", a.Record.OrderID, err)
		}
		at, err := parseTime(a.ArchivedAt)
		if err != nil || at == nil {
			return nil, nil, errors.NewValidationError("archived_at", a.ArchivedAt, "not an RFC 3339 timestamp")
		}
		archive = append(archive, store.ArchivedRecord{Record: r, ArchivedAt: *at})
	}
	return snap, archive, nil
}
