package privacy

// Review buckets shown as tabs in the doctor dashboard.
const (
	BucketUnread   = "unread"
	BucketReviewed = "reviewed"
)

// unreadStatuses are the review states that still need doctor attention.
// A missing status defaults to pending, so brand-new assignments land in
// the unread tab.
var unreadStatuses = map[string]bool{
	"pending":    true,
	"needs_info": true,
}

// FilterByBucket partitions doctor DTOs by review state. An unknown bucket
// name returns the input unfiltered rather than an empty tab.
func FilterByBucket(items []*DoctorLeadDTO, bucket string) []*DoctorLeadDTO {
	switch bucket {
	case BucketUnread:
		return filter(items, func(status string) bool { return unreadStatuses[status] })
	case BucketReviewed:
		return filter(items, func(status string) bool { return status == "reviewed" })
	default:
		return items
	}
}

func filter(items []*DoctorLeadDTO, match func(status string) bool) []*DoctorLeadDTO {
	out := make([]*DoctorLeadDTO, 0, len(items))
	for _, item := range items {
		status := "pending"
		if s, ok := item.DoctorReviewStatus.(string); ok && s != "" {
			status = s
		}
		if match(status) {
			out = append(out, item)
		}
	}
	return out
}
