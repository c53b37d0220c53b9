package history

// Source labels which path produced a tag write.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourceBulk    Source = "bulk"
	SourceSweep   Source = "sweep"
	SourceManual  Source = "manual"
)

// Entry represents one applied tag write.
type Entry struct {
	ID          int64    `json:"id"`
	CreatedAt   string   `json:"createdAt"`
	ItemID      string   `json:"itemId"`
	ItemName    string   `json:"itemName,omitempty"`
	ItemKind    string   `json:"itemKind,omitempty"`
	ProviderID  string   `json:"providerId,omitempty"`
	Mode        string   `json:"mode"`
	Source      Source   `json:"source"`
	TagsAdded   []string `json:"tagsAdded"`
	TagsRemoved []string `json:"tagsRemoved"`
	TagsFinal   []string `json:"tagsFinal"`
}

// CreateInput contains fields for recording a tag write.
type CreateInput struct {
	ItemID      string
	ItemName    string
	ItemKind    string
	ProviderID  string
	Mode        string
	Source      Source
	TagsAdded   []string
	TagsRemoved []string
	TagsFinal   []string
}

// ListOptions contains options for listing history.
type ListOptions struct {
	Source   string
	ItemID   string
	Page     int
	PageSize int
}

// ListResponse contains paginated history results.
type ListResponse struct {
	Items      []*Entry `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalCount int64    `json:"totalCount"`
	TotalPages int      `json:"totalPages"`
}
