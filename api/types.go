package api

// FolderResult reports the outcome of applying one retention policy.
// Rows for folders that could not be processed carry Error and zero-valued
// counts; consumers distinguish them by the presence of the error field.
type FolderResult struct {
	// Folder is the prefix the policy was applied to
	Folder string `json:"folder"`

	// TotalObjects is the number of backup objects found under the folder
	TotalObjects int `json:"total_objects"`

	// ObjectsToDelete is the number of objects the retention policy marked for deletion
	ObjectsToDelete int `json:"objects_to_delete"`

	// Deleted is the number of objects the storage backend confirmed deleted
	Deleted int `json:"deleted"`

	// Failed is the number of objects that could not be deleted
	Failed int `json:"failed"`

	// Error is set when the folder could not be processed at all
	Error string `json:"error,omitempty"`
}

// CleanupReport summarizes one retention cleanup run across all folders.
type CleanupReport struct {
	Message string `json:"message"`

	// TotalDeleted and TotalFailed aggregate the per-folder deletion counts
	TotalDeleted int `json:"total_deleted"`
	TotalFailed  int `json:"total_failed"`

	Results []FolderResult `json:"results"`
}

// ErrorResponse is the JSON body of a failed cleanup request.
// Configuration errors carry only Error; unexpected failures carry the
// generic Error plus the underlying Message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
