package models

// TableCounts maps table name to a count.
type TableCounts map[string]int

// Total sums all tables.
func (c TableCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

type RetryStats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Dropped   int `json:"dropped"`
}

// SyncStats summarises one incremental sync run.
type SyncStats struct {
	Uploaded     TableCounts `json:"uploaded"`
	UploadFailed TableCounts `json:"upload_failed"`
	Downloaded   TableCounts `json:"downloaded"`
	Conflicts    TableCounts `json:"conflicts"`
	Retry        RetryStats  `json:"retry"`
}

func NewSyncStats() *SyncStats {
	return &SyncStats{
		Uploaded:     TableCounts{},
		UploadFailed: TableCounts{},
		Downloaded:   TableCounts{},
		Conflicts:    TableCounts{},
	}
}
