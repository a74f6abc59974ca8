package domain

import "time"

type JobState string

const (
	JobStateFetchingMetadata JobState = "fetching-metadata"
	JobStateDownloading      JobState = "downloading"
	JobStatePaused           JobState = "paused"
	JobStateCompleted        JobState = "completed"
)

// JobRecord is the externally visible view of one transfer job. Active jobs
// are refreshed from engine stats on every monitor tick; completed jobs keep
// the snapshot taken at completion time.
type JobRecord struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	State        JobState   `json:"state"`
	Progress     float64    `json:"progress"`
	DownloadRate int64      `json:"download_rate"`
	UploadRate   int64      `json:"upload_rate"`
	Peers        int        `json:"num_peers"`
	Seeds        int        `json:"num_seeds"`
	TotalSize    int64      `json:"total_size"`
	Downloaded   int64      `json:"downloaded"`
	Uploaded     int64      `json:"uploaded"`
	Ratio        float64    `json:"ratio"`
	ETA          int64      `json:"eta"`
	SaveRoot     string     `json:"save_path"`
	AddedAt      time.Time  `json:"added_time"`
	CompletedAt  *time.Time `json:"completed_time,omitempty"`
}

// FileEntry captures one file of a job, resolved against its save root.
type FileEntry struct {
	RelativePath string `json:"relative_path"`
	AbsolutePath string `json:"-"`
	Size         int64  `json:"size"`
}

// Ratio returns uploaded/downloaded, treating zero downloaded bytes as one so
// the result is always finite.
func Ratio(uploaded, downloaded int64) float64 {
	if downloaded < 1 {
		downloaded = 1
	}
	return float64(uploaded) / float64(downloaded)
}
