package jobs

type JobType string

const (
	// JobLinkCreatedPlace appends a place id to its owner's createdPlaces.
	JobLinkCreatedPlace JobType = "link_created_place"
	// JobUnlinkCreatedPlace removes a deleted place id from createdPlaces.
	JobUnlinkCreatedPlace JobType = "unlink_created_place"
)

func (t JobType) IsValid() bool {
	switch t {
	case JobLinkCreatedPlace, JobUnlinkCreatedPlace:
		return true
	default:
		return false
	}
}
