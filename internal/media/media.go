package media

import "time"

// Media records an uploaded object.
type Media struct {
	ID          string    `bson:"_id" json:"id"`
	OwnerID     string    `bson:"ownerId" json:"ownerId"`
	Key         string    `bson:"key" json:"key"`
	URL         string    `bson:"url" json:"url"`
	Thumbnail   string    `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Type        string    `bson:"type" json:"type"`
	Size        int64     `bson:"size" json:"size"`
	ContentType string    `bson:"contentType" json:"contentType"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}
