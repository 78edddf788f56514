package query

import "strconv"

// MaxPagingLimit is the largest limit DefaultPaginationHandler accepts.
const MaxPagingLimit = 1000

// PaginateQuery appends cursor, ordering and limit clauses to a query whose
// WHERE clause is wrapped in parentheses, numbering new placeholders after
// the existing args.
//
//	PaginateQuery("SELECT * FROM t WHERE (state = $1)", []interface{}{1}, ToCursor(9), 10, Descending)
//	> "SELECT * FROM t WHERE (state = $1) AND id < $2 ORDER BY id DESC LIMIT $3"
func PaginateQuery(query string, args []interface{}, cursor Cursor, limit uint64, direction Ordering) (string, []interface{}) {
	placeholder := func(val interface{}) string {
		args = append(args, val)
		return "$" + strconv.Itoa(len(args))
	}

	if len(cursor) > 0 {
		comparison := " > "
		if direction == Descending {
			comparison = " < "
		}
		query += " AND id" + comparison + placeholder(cursor.ToUint64())
	}

	query += " ORDER BY id " + direction.SQL()

	if limit > 0 {
		query += " LIMIT " + placeholder(limit)
	}

	return query, args
}

// DefaultPaginationHandler applies paging options over an ascending default.
func DefaultPaginationHandler(opts ...Option) (*QueryOptions, error) {
	return DefaultPaginationHandlerWithLimit(MaxPagingLimit, opts...)
}

// DefaultPaginationHandlerWithLimit applies paging options, rejecting limits
// above the provided maximum. A zero limit resolves to the maximum.
func DefaultPaginationHandlerWithLimit(limit uint64, opts ...Option) (*QueryOptions, error) {
	req := QueryOptions{
		Limit:     limit,
		SortBy:    Ascending,
		Supported: CanLimitResults | CanSortBy | CanQueryByCursor | CanFilterBy,
	}
	if err := req.Apply(opts...); err != nil {
		return nil, ErrQueryNotSupported
	}

	if req.Limit == 0 {
		req.Limit = limit
	}
	if req.Limit > limit {
		return nil, ErrQueryNotSupported
	}

	return &req, nil
}
