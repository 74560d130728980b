// File: internal/menu/model.go
package menu

import "go.mongodb.org/mongo-driver/bson/primitive"

// Menu is one navigation entry of the MENU_MASTER collection.
type Menu struct {
	ID    primitive.ObjectID `bson:"_id,omitempty"`
	Name  string             `bson:"name"`
	Index int                `bson:"index"`
	Slug  string             `bson:"slug"`
}

// MenuResponse is a menu with its id rendered as a string.
type MenuResponse struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Index int    `json:"index"`
	Slug  string `json:"slug"`
}

// MenuName is the {id, name} pair returned by the menu-name lookup.
type MenuName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MenuRequest is the body of POST /menu.
type MenuRequest struct {
	MenuIDs []string `json:"menu_ids"`
}

func ToMenuResponse(m *Menu) MenuResponse {
	return MenuResponse{ID: m.ID.Hex(), Name: m.Name, Index: m.Index, Slug: m.Slug}
}
