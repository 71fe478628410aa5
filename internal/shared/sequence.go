package shared

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// RowQuerier is satisfied by pgx.Tx and *pgxpool.Pool.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NextDocumentNumber reserves the next sequence of docType for the month of
// date and formats it as {TYPE}-{YYMM}-{SEQ}. Run it inside the transaction
// that stores the document so an aborted insert does not burn the number.
func NextDocumentNumber(ctx context.Context, q RowQuerier, docType string, date time.Time) (string, error) {
	docType = strings.ToUpper(strings.TrimSpace(docType))
	if docType == "" {
		return "", fmt.Errorf("document type required")
	}
	var seq int64
	err := q.QueryRow(ctx, `
INSERT INTO document_sequences (doc_type, period, seq)
VALUES ($1, $2, 1)
ON CONFLICT (doc_type, period)
DO UPDATE SET seq = document_sequences.seq + 1
RETURNING seq`, docType, date.Format("200601")).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next %s number: %w", docType, err)
	}
	return FormatDocumentNumber(docType, date, seq), nil
}

// FormatDocumentNumber renders a document number, e.g. SO-2410-0007.
func FormatDocumentNumber(docType string, date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", docType, date.Format("0601"), seq)
}
