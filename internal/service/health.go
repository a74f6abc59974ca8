package service

import "syscall"

// StorageInfo summarizes disk capacity of the download root.
type StorageInfo struct {
	TotalGB     float64 `json:"total_gb"`
	UsedGB      float64 `json:"used_gb"`
	FreeGB      float64 `json:"free_gb"`
	UsedPercent float64 `json:"used_percent"`
}

// Storage reports capacity of the filesystem holding the download root. A
// failed statfs yields zeroes rather than an error; health stays reportable.
func (s *JobService) Storage() StorageInfo {
	var st syscall.Statfs_t
	if err := syscall.Statfs(s.cfg.DownloadRoot, &st); err != nil {
		s.cfg.Logger.Errorf("statfs %s: %v", s.cfg.DownloadRoot, err)
		return StorageInfo{}
	}

	const gb = 1 << 30
	total := float64(st.Blocks) * float64(st.Bsize)
	free := float64(st.Bavail) * float64(st.Bsize)
	used := total - float64(st.Bfree)*float64(st.Bsize)

	info := StorageInfo{
		TotalGB: total / gb,
		UsedGB:  used / gb,
		FreeGB:  free / gb,
	}
	if total > 0 {
		info.UsedPercent = used / total * 100
	}
	return info
}
