package output

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store"
	"github.com/agentstation/ordersync/pkg/sync"
)

// RecordView is the flat, serializable shape of a record for CLI output.
type RecordView struct {
	ID                int64  `json:"id" yaml:"id"`
	OrderID           string `json:"order_id" yaml:"order_id"`
	ProductCode       string `json:"product_code" yaml:"product_code"`
	ProductName       string `json:"product_name" yaml:"product_name"`
	OrderDate         string `json:"order_date,omitempty" yaml:"order_date,omitempty"`
	SellingPrice      string `json:"selling_price" yaml:"selling_price"`
	OrderTotal        string `json:"order_total" yaml:"order_total"`
	PaymentType       string `json:"payment_type" yaml:"payment_type"`
	PrepaidAmount     string `json:"prepaid_amount" yaml:"prepaid_amount"`
	AllocationRatio   int64  `json:"allocation_ratio" yaml:"allocation_ratio"`
	AllocatedTotal    string `json:"allocated_total" yaml:"allocated_total"`
	CollectableAmount string `json:"collectable_amount" yaml:"collectable_amount"`
	Status            string `json:"status" yaml:"status"`
	ClaimedBy         string `json:"claimed_by,omitempty" yaml:"claimed_by,omitempty"`
	ClaimedAt         string `json:"claimed_at,omitempty" yaml:"claimed_at,omitempty"`
	LastClaimedBy     string `json:"last_claimed_by,omitempty" yaml:"last_claimed_by,omitempty"`
	HandoverAt        string `json:"handover_at,omitempty" yaml:"handover_at,omitempty"`
	CustomerName      string `json:"customer_name,omitempty" yaml:"customer_name,omitempty"`
	ProductImageRef   string `json:"product_image_ref,omitempty" yaml:"product_image_ref,omitempty"`
	Version           int64  `json:"version" yaml:"version"`
	ArchivedAt        string `json:"archived_at,omitempty" yaml:"archived_at,omitempty"`
}

// NewRecordView flattens r.
func NewRecordView(r *orders.Record) RecordView {
	return RecordView{
		ID:                r.ID,
		OrderID:           r.OrderID,
		ProductCode:       r.ProductCode,
		ProductName:       r.ProductName,
		OrderDate:         r.OrderDate,
		SellingPrice:      r.SellingPrice.StringFixed(2),
		OrderTotal:        r.OrderTotal.StringFixed(2),
		PaymentType:       r.PaymentType.String(),
		PrepaidAmount:     r.PrepaidAmount.StringFixed(2),
		AllocationRatio:   r.AllocationRatio,
		AllocatedTotal:    r.AllocatedTotal.StringFixed(2),
		CollectableAmount: r.CollectableAmount.StringFixed(2),
		Status:            r.Status.String(),
		ClaimedBy:         r.ClaimedBy,
		ClaimedAt:         stamp(r.ClaimedAt),
		LastClaimedBy:     r.LastClaimedBy,
		HandoverAt:        stamp(r.HandoverAt),
		CustomerName:      r.CustomerName,
		ProductImageRef:   r.ProductImageRef,
		Version:           r.Version,
	}
}

// RecordViews flattens rows.
func RecordViews(rows []*orders.Record) []RecordView {
	out := make([]RecordView, 0, len(rows))
	for _, r := range rows {
		out = append(out, NewRecordView(r))
	}
	return out
}

// ArchivedViews flattens archived rows.
func ArchivedViews(rows []store.ArchivedRecord) []RecordView {
	out := make([]RecordView, 0, len(rows))
	for _, a := range rows {
		v := NewRecordView(a.Record)
		v.ArchivedAt = a.ArchivedAt.Time.Format(time.RFC3339)
		out = append(out, v)
	}
	return out
}

// RecordsToTableData builds the record table. Wide output adds the
// payment split and enrichment columns.
func RecordsToTableData(views []RecordView, wide bool) Data {
	headers := []string{"ID", "Order", "Product", "Name", "Allocated", "Payment", "Status", "Claimed By"}
	right := []int{4}
	if wide {
		headers = append(headers, "Ratio", "Prepaid", "Collectable", "Customer", "Image", "Version")
		right = append(right, 8, 9, 10, 13)
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		row := []string{
			strconv.FormatInt(v.ID, 10),
			v.OrderID,
			v.ProductCode,
			v.ProductName,
			v.AllocatedTotal,
			v.PaymentType,
			v.Status,
			v.ClaimedBy,
		}
		if wide {
			row = append(row,
				strconv.FormatInt(v.AllocationRatio, 10),
				v.PrepaidAmount,
				v.CollectableAmount,
				v.CustomerName,
				v.ProductImageRef,
				strconv.FormatInt(v.Version, 10),
			)
		}
		rows = append(rows, row)
	}
	return Data{Headers: headers, Rows: rows, RightAligned: right}
}

// ResultView is the serializable shape of a cycle result.
type ResultView struct {
	CycleID            string         `json:"cycle_id" yaml:"cycle_id"`
	StartedAt          string         `json:"started_at" yaml:"started_at"`
	Duration           string         `json:"duration" yaml:"duration"`
	Orders             int            `json:"orders" yaml:"orders"`
	Lines              int            `json:"lines" yaml:"lines"`
	SkippedOrders      int            `json:"skipped_orders" yaml:"skipped_orders"`
	Rows               int            `json:"rows" yaml:"rows"`
	LastID             int64          `json:"last_id" yaml:"last_id"`
	Changed            bool           `json:"changed" yaml:"changed"`
	Added              int            `json:"added" yaml:"added"`
	Updated            int            `json:"updated" yaml:"updated"`
	Removed            int            `json:"removed" yaml:"removed"`
	Written            bool           `json:"written" yaml:"written"`
	DryRun             bool           `json:"dry_run" yaml:"dry_run"`
	EnhancementWritten int            `json:"enhancement_written" yaml:"enhancement_written"`
	EnhancementMisses  map[string]int `json:"enhancement_misses,omitempty" yaml:"enhancement_misses,omitempty"`
	EnhancementError   string         `json:"enhancement_error,omitempty" yaml:"enhancement_error,omitempty"`
}

// NewResultView flattens res.
func NewResultView(res *sync.Result) ResultView {
	v := ResultView{
		CycleID:            res.CycleID,
		StartedAt:          res.StartedAt.Time.Format(time.RFC3339),
		Duration:           res.Duration.Round(time.Millisecond).String(),
		Orders:             res.Orders,
		Lines:              res.Lines,
		SkippedOrders:      res.SkippedOrders,
		Rows:               res.Rows,
		LastID:             res.LastID,
		Changed:            res.Changed,
		Written:            res.Written(),
		DryRun:             res.DryRun,
		EnhancementWritten: res.EnhancementWritten,
	}
	if cs := res.Changeset; cs != nil {
		v.Added = cs.Summary.Added
		v.Updated = cs.Summary.Updated
		v.Removed = cs.Summary.Removed
	}
	for field, n := range res.Enhancement.Misses {
		if n == 0 {
			continue
		}
		if v.EnhancementMisses == nil {
			v.EnhancementMisses = map[string]int{}
		}
		v.EnhancementMisses[field] = n
	}
	if res.EnhancementErr != nil {
		v.EnhancementError = res.EnhancementErr.Error()
	}
	return v
}

// Print writes res in the given format. Table output prints the summary
// line and, when wide, the detailed changeset.
func Print(w io.Writer, format Format, res *sync.Result) error {
	if !format.IsTable() {
		return NewFormatter(format).Format(w, NewResultView(res))
	}
	if _, err := fmt.Fprintln(w, res.Summary()); err != nil {
		return err
	}
	if format == FormatWide && res.Changeset.HasChanges() {
		res.Changeset.Print(w)
	}
	return nil
}

// Records writes views in the given format.
func Records(w io.Writer, format Format, views []RecordView) error {
	if format.IsTable() {
		return NewFormatter(format).Format(w, RecordsToTableData(views, format == FormatWide))
	}
	return NewFormatter(format).Format(w, views)
}

func stamp(t *utc.Time) string {
	if t == nil {
		return ""
	}
	return t.Time.Format(time.RFC3339)
}
