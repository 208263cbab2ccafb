package discogs

// Wire types for the Discogs API endpoints the sources consume. Only
// the fields we store are declared.

type Pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

type CollectionResponse struct {
	Pagination Pagination          `json:"pagination"`
	Releases   []CollectionRelease `json:"releases"`
}

type CollectionRelease struct {
	ID               int64       `json:"id"`
	InstanceID       int64       `json:"instance_id"`
	FolderID         int         `json:"folder_id"`
	Rating           int         `json:"rating"`
	DateAdded        string      `json:"date_added"`
	BasicInformation BasicInfo   `json:"basic_information"`
	Notes            []NoteField `json:"notes"`
}

// BasicInfo is the release summary embedded in collection and wantlist
// entries.
type BasicInfo struct {
	ID         int64       `json:"id"`
	Title      string      `json:"title"`
	Year       int         `json:"year"`
	Thumb      string      `json:"thumb"`
	CoverImage string      `json:"cover_image"`
	Artists    []ArtistRef `json:"artists"`
	Labels     []LabelRef  `json:"labels"`
	Formats    []FormatRef `json:"formats"`
}

type ArtistRef struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type LabelRef struct {
	Name  string `json:"name"`
	CatNo string `json:"catno"`
}

type FormatRef struct {
	Name         string   `json:"name"`
	Qty          string   `json:"qty"`
	Descriptions []string `json:"descriptions"`
}

// NoteField is a per-instance custom field. Field 1 is media
// condition, field 2 is sleeve condition.
type NoteField struct {
	FieldID int    `json:"field_id"`
	Value   string `json:"value"`
}

type WantsResponse struct {
	Pagination Pagination `json:"pagination"`
	Wants      []Want     `json:"wants"`
}

type Want struct {
	ID               int64     `json:"id"`
	Rating           int       `json:"rating"`
	DateAdded        string    `json:"date_added"`
	Notes            string    `json:"notes"`
	BasicInformation BasicInfo `json:"basic_information"`
}

type marketplaceStatsResponse struct {
	NumForSale  int         `json:"num_for_sale"`
	LowestPrice *priceValue `json:"lowest_price"`
	Blocked     bool        `json:"blocked_from_sale"`
}

type priceValue struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// MarketplaceStats is the flattened stats result.
type MarketplaceStats struct {
	NumForSale  int
	LowestPrice *float64
	Blocked     bool
}

type ReleaseDetail struct {
	ID        int64        `json:"id"`
	Title     string       `json:"title"`
	Tracklist []TrackEntry `json:"tracklist"`
}

type TrackEntry struct {
	Position     string      `json:"position"`
	Type         string      `json:"type_"`
	Title        string      `json:"title"`
	Duration     string      `json:"duration"`
	Artists      []ArtistRef `json:"artists"`
	ExtraArtists []ArtistRef `json:"extraartists"`
}
