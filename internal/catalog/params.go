package catalog

// AlbumListParams configures paginated digital-album queries.
type AlbumListParams struct {
	Page           int
	PageSize       int
	Search         string
	Artist         string
	HideDuplicates bool
	Sort           string
	Order          string
}

// Validate normalizes and validates list parameters.
func (p *AlbumListParams) Validate() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 200 {
		p.PageSize = 50
	}
	switch p.Sort {
	case "title", "artist", "updated_at", "created_at":
		// valid
	default:
		p.Sort = "artist"
	}
	if p.Order != "desc" {
		p.Order = "asc"
	}
}

// RecordListParams configures paginated physical-record queries.
type RecordListParams struct {
	Page     int
	PageSize int
	Search   string
	Artist   string
	FolderID int
	Sort     string
	Order    string
}

// Validate normalizes and validates list parameters.
func (p *RecordListParams) Validate() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 200 {
		p.PageSize = 50
	}
	switch p.Sort {
	case "title", "artist", "year", "date_added", "last_listened", "updated_at":
		// valid
	default:
		p.Sort = "artist"
	}
	if p.Order != "desc" {
		p.Order = "asc"
	}
}

// WantlistParams configures paginated wantlist queries.
type WantlistParams struct {
	Page          int
	PageSize      int
	Search        string
	OnlyAvailable bool
	Sort          string
	Order         string
}

// Validate normalizes and validates list parameters.
func (p *WantlistParams) Validate() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 200 {
		p.PageSize = 50
	}
	switch p.Sort {
	case "artist", "title", "year", "lowest_price", "date_added":
		// valid
	default:
		p.Sort = "artist"
	}
	if p.Order != "desc" {
		p.Order = "asc"
	}
}

// ListenListParams configures paginated listening-log queries.
type ListenListParams struct {
	Page     int
	PageSize int
	Source   string
	Artist   string
}

// Validate normalizes and validates list parameters.
func (p *ListenListParams) Validate() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 200 {
		p.PageSize = 50
	}
	if !ValidListenSource(p.Source) {
		p.Source = ""
	}
}

// UnifiedParams configures the merged collection view.
type UnifiedParams struct {
	Page           int
	PageSize       int
	Search         string
	HideDuplicates bool
}

// Validate normalizes and validates list parameters.
func (p *UnifiedParams) Validate() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 200 {
		p.PageSize = 50
	}
}

// Search sides.
const (
	SearchSourceDigital  = "digital"
	SearchSourcePhysical = "physical"
	SearchSourceAll      = "all"
)

// SearchParams configures cross-collection searches.
type SearchParams struct {
	Query    string
	Source   string
	Page     int
	PageSize int
}

// Validate normalizes and validates search parameters.
func (p *SearchParams) Validate() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 200 {
		p.PageSize = 50
	}
	switch p.Source {
	case SearchSourceDigital, SearchSourcePhysical:
		// valid
	default:
		p.Source = SearchSourceAll
	}
}
