package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mail-sync-service/internal/model"
)

type EmailRepository struct {
	db *pgxpool.Pool
}

func NewEmailRepository(db *pgxpool.Pool) *EmailRepository {
	return &EmailRepository{db: db}
}

const emailColumns = `
    id, owner_id, message_id, thread_id, subject,
    from_email, to_email, cc_email, bcc_email,
    body_text, body_html, received_date,
    is_read, is_starred, has_attachments,
    labels, snippet, size_estimate, created_at, updated_at
`

func scanEmail(row pgx.Row) (*model.EmailMessage, error) {
	var m model.EmailMessage
	err := row.Scan(
		&m.ID,
		&m.OwnerID,
		&m.MessageID,
		&m.ThreadID,
		&m.Subject,
		&m.FromEmail,
		&m.ToEmail,
		&m.CcEmail,
		&m.BccEmail,
		&m.BodyText,
		&m.BodyHTML,
		&m.ReceivedDate,
		&m.IsRead,
		&m.IsStarred,
		&m.HasAttachments,
		&m.Labels,
		&m.Snippet,
		&m.SizeEstimate,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByOwnerAndMessageID looks up the dedup key; nil when not stored yet.
func (r *EmailRepository) FindByOwnerAndMessageID(ctx context.Context, ownerID, messageID string) (*model.EmailMessage, error) {
	query := `
        SELECT ` + emailColumns + `
        FROM email_messages
        WHERE owner_id = $1 AND message_id = $2
    `

	m, err := scanEmail(r.db.QueryRow(ctx, query, ownerID, messageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Insert stores a message seen for the first time.
func (r *EmailRepository) Insert(ctx context.Context, m *model.EmailMessage) error {
	query := `
        INSERT INTO email_messages
            (owner_id, message_id, thread_id, subject,
             from_email, to_email, cc_email, bcc_email,
             body_text, body_html, received_date,
             is_read, is_starred, has_attachments,
             labels, snippet, size_estimate, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
                $12, $13, $14, $15, $16, $17, NOW(), NOW())
        RETURNING id
    `

	return r.db.QueryRow(ctx, query,
		m.OwnerID,
		m.MessageID,
		m.ThreadID,
		m.Subject,
		m.FromEmail,
		m.ToEmail,
		m.CcEmail,
		m.BccEmail,
		m.BodyText,
		m.BodyHTML,
		m.ReceivedDate,
		m.IsRead,
		m.IsStarred,
		m.HasAttachments,
		m.Labels,
		m.Snippet,
		m.SizeEstimate,
	).Scan(&m.ID)
}

// Update overwrites the mutable fields of an already-stored message.
// received_date and created_at are deliberately absent from the SET list.
func (r *EmailRepository) Update(ctx context.Context, m *model.EmailMessage) error {
	query := `
        UPDATE email_messages SET
            thread_id = $3,
            subject = $4,
            from_email = $5,
            to_email = $6,
            cc_email = $7,
            bcc_email = $8,
            body_text = $9,
            body_html = $10,
            is_read = $11,
            is_starred = $12,
            has_attachments = $13,
            labels = $14,
            snippet = $15,
            size_estimate = $16,
            updated_at = NOW()
        WHERE owner_id = $1 AND message_id = $2
    `

	_, err := r.db.Exec(ctx, query,
		m.OwnerID,
		m.MessageID,
		m.ThreadID,
		m.Subject,
		m.FromEmail,
		m.ToEmail,
		m.CcEmail,
		m.BccEmail,
		m.BodyText,
		m.BodyHTML,
		m.IsRead,
		m.IsStarred,
		m.HasAttachments,
		m.Labels,
		m.Snippet,
		m.SizeEstimate,
	)
	return err
}

// DeleteReceivedBefore removes an owner's messages older than the cutoff.
func (r *EmailRepository) DeleteReceivedBefore(ctx context.Context, ownerID string, cutoff time.Time) (int64, error) {
	query := `
        DELETE FROM email_messages
        WHERE owner_id = $1 AND received_date < $2
    `

	tag, err := r.db.Exec(ctx, query, ownerID, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteByOwner removes all of an owner's messages (disconnect cascade).
func (r *EmailRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	query := `DELETE FROM email_messages WHERE owner_id = $1`

	tag, err := r.db.Exec(ctx, query, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountByOwner returns the total stored messages for an owner.
func (r *EmailRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM email_messages WHERE owner_id = $1`,
		ownerID,
	).Scan(&count)
	return count, err
}

// CountUnreadByOwner returns the unread count for an owner.
func (r *EmailRepository) CountUnreadByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM email_messages WHERE owner_id = $1 AND is_read = FALSE`,
		ownerID,
	).Scan(&count)
	return count, err
}

// CountStarredByOwner returns the starred count for an owner.
func (r *EmailRepository) CountStarredByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM email_messages WHERE owner_id = $1 AND is_starred = TRUE`,
		ownerID,
	).Scan(&count)
	return count, err
}
