package model

// Entity is one entry of a per-document entities.json
type Entity struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Status string `json:"status,omitempty"`
}

// EntitiesFile is the per-document entities.json artifact
type EntitiesFile struct {
	Entities []Entity `json:"entities"`
}

// Signal is the corpus-wide frequency of one normalized (type, text) pair
type Signal struct {
	Key       string   `json:"key"`
	Type      string   `json:"type"`
	Value     string   `json:"value"` // first-seen original casing
	Count     int      `json:"count"`
	Documents []string `json:"documents"`
}
