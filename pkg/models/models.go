package models

// FileRecord is one indexed file, stored in the all_files table.
type FileRecord struct {
	ID       int64   `json:"id" gorm:"primaryKey"`
	FileName string  `json:"file_name"`
	FullPath string  `json:"full_path"`
	FileType string  `json:"file_type"`
	FileSize int64   `json:"file_size"`
	Content  *string `json:"content"`
}

func (FileRecord) TableName() string { return "all_files" }

// SearchResult is one match of the most recent search, stored in the
// search_results table.
type SearchResult struct {
	ID          int64  `json:"id" gorm:"primaryKey"`
	FileID      int64  `json:"file_id"`
	FileName    string `json:"file_name"`
	FullPath    string `json:"full_path"`
	FileType    string `json:"file_type"`
	FileSize    int64  `json:"file_size"`
	Occurrences int    `json:"occurrences"`
}

func (SearchResult) TableName() string { return "search_results" }

// NewSearchResult copies the denormalized fields of f into a result row.
func NewSearchResult(f FileRecord, occurrences int) SearchResult {
	return SearchResult{
		FileID:      f.ID,
		FileName:    f.FileName,
		FullPath:    f.FullPath,
		FileType:    f.FileType,
		FileSize:    f.FileSize,
		Occurrences: occurrences,
	}
}
