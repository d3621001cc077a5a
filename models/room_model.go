package models

import "go.mongodb.org/mongo-driver/bson"

type RoomSize struct {
	Width  int `json:"width" bson:"width"`
	Height int `json:"height" bson:"height"`
	Floors int `json:"floors" bson:"floors"`
}

// Room is a floor plan used by the beacon-based indoor variant of the app.
type Room struct {
	ID    string   `json:"id" bson:"id"`
	Name  string   `json:"name" bson:"name"`
	Size  RoomSize `json:"size" bson:"size"`
	Image []byte   `json:"image" bson:"image"`
}

func RoomFromDocument(raw bson.Raw) (*Room, error) {
	return fromDocument(raw, &Room{})
}
