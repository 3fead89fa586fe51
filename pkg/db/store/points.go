package store

import (
	"context"
	"fmt"
	"strings"
)

// GetUserPoints pages through the per-device daily points, joined to the
// owning client row, with window functions so the total row/point counts
// come back alongside the page — the same CTE-plus-row-window shape as the
// original's get_user_points.
func (q *Queries) GetUserPoints(ctx context.Context, arg GetUserPointsParams) ([]UserPointsRow, int64, error) {
	var where strings.Builder
	args := make([]interface{}, 0, 6)

	args = append(args, arg.UserID)
	fmt.Fprintf(&where, " AND c.user_id = $%d", len(args))

	if arg.ClientID != nil {
		args = append(args, *arg.ClientID)
		fmt.Fprintf(&where, " AND d.client_id = $%d", len(args))
	}
	if arg.ClientNameLike != nil {
		args = append(args, "%"+*arg.ClientNameLike+"%")
		fmt.Fprintf(&where, " AND c.client_name ILIKE $%d", len(args))
	}
	if arg.DeviceID != nil {
		args = append(args, *arg.DeviceID)
		fmt.Fprintf(&where, " AND d.device_id = $%d", len(args))
	}
	if arg.StartDate != nil {
		args = append(args, *arg.StartDate)
		fmt.Fprintf(&where, " AND d.date >= $%d", len(args))
	}
	if arg.EndDate != nil {
		args = append(args, *arg.EndDate)
		fmt.Fprintf(&where, " AND d.date <= $%d", len(args))
	}

	offset := (arg.Page - 1) * arg.PageSize
	args = append(args, offset)
	offsetIdx := len(args)
	args = append(args, int64(offset)+int64(arg.PageSize))
	endIdx := len(args)

	sql := fmt.Sprintf(`
WITH filtered AS (
	SELECT d.client_id, c.client_name, d.device_id, d.date, d.points
	FROM device_daily_stats d
	JOIN clients c ON c.client_id = d.client_id
	WHERE 1=1%s
),
windowed AS (
	SELECT *,
		ROW_NUMBER() OVER (ORDER BY date DESC, client_id) AS row_num,
		COUNT(*) OVER() AS total_count,
		SUM(points) OVER() AS sum_points
	FROM filtered
)
SELECT client_id, client_name, device_id, date, points, total_count, sum_points
FROM windowed
WHERE row_num > $%d AND row_num <= $%d
ORDER BY date DESC, client_id
`, where.String(), offsetIdx, endIdx)

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []UserPointsRow
	var total int64
	for rows.Next() {
		var r UserPointsRow
		if err := rows.Scan(&r.ClientID, &r.ClientName, &r.DeviceID, &r.Date, &r.Points, &r.TotalCount, &r.SumPoints); err != nil {
			return nil, 0, err
		}
		total = r.TotalCount
		out = append(out, r)
	}
	return out, total, rows.Err()
}
