package models

// Provider is an external identity (Twitter, Facebook, ...) linked to a User.
type Provider struct {
	Name         string `json:"name" bson:"name"`
	AccessToken  string `json:"access_token" bson:"access_token"`
	AccessSecret string `json:"access_secret" bson:"access_secret"`
}

func NewProvider(name, accessToken, accessSecret string) Provider {
	return Provider{Name: name, AccessToken: accessToken, AccessSecret: accessSecret}
}
