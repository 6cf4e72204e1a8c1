package bookingservice

import (
	"context"
)

func (m *BookingModel) insert(ctx context.Context, b *Booking) error {
	query := `
		INSERT INTO session_requests (name, email, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return m.db.QueryRowContext(ctx, query, b.Name, b.Email, b.Message).Scan(&b.ID, &b.CreatedAt)
}

func (m *BookingModel) list(ctx context.Context, limit, offset int) ([]*Booking, error) {
	query := `
		SELECT id, name, email, message, created_at
		FROM session_requests
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := m.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []*Booking{}
	for rows.Next() {
		var b Booking
		err := rows.Scan(&b.ID, &b.Name, &b.Email, &b.Message, &b.CreatedAt)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}
