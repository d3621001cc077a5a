package models

import "go.mongodb.org/mongo-driver/bson"

type Point struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
	Z float64 `json:"z" bson:"z"`
}

type Beacon struct {
	ID       string `json:"id" bson:"id"`
	RoomID   string `json:"room_id" bson:"room_id"`
	Name     string `json:"name" bson:"name"`
	Location Point  `json:"location" bson:"location"`
}

func BeaconFromDocument(raw bson.Raw) (*Beacon, error) {
	return fromDocument(raw, &Beacon{})
}
