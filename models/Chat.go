package models

//goland:noinspection ALL
const (
	ACTION_ADD    = "add"
	ACTION_SEARCH = "search"
)

type ExtractedPolicy struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Scope         string `json:"scope"`
	Description   string `json:"description"`
	EffectiveDate string `json:"effective_date"`
	ExpiryDate    string `json:"expiry_date"`
}

type ChatData struct {
	Action        string           `json:"action"`
	ExtractedData *ExtractedPolicy `json:"extracted_data"`
	Results       []Policy         `json:"results"`
}

// ChatReply is the body of a successful POST /chat.
type ChatReply struct {
	Response string    `json:"response"`
	Data     *ChatData `json:"data"`
}
