package dynamodb

import (
	"fmt"

	"github.com/artgluhovskiy/vertex-sub001/domain/core/aggregates"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
)

// noteItem is the stored form of a note, local or remote.
type noteItem struct {
	PK          string   `dynamodbav:"PK"`
	SK          string   `dynamodbav:"SK"`
	EntityType  string   `dynamodbav:"EntityType"`
	GSI1PK      string   `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK      string   `dynamodbav:"GSI1SK,omitempty"`
	NoteID      string   `dynamodbav:"NoteID"`
	UserID      string   `dynamodbav:"UserID"`
	DirectoryID string   `dynamodbav:"DirectoryID,omitempty"`
	Title       string   `dynamodbav:"Title"`
	Content     string   `dynamodbav:"Content"`
	Summary     string   `dynamodbav:"Summary,omitempty"`
	Tags        []string `dynamodbav:"Tags"`
	CreatedAt   string   `dynamodbav:"CreatedAt"`
	UpdatedAt   string   `dynamodbav:"UpdatedAt"`
	Version     int      `dynamodbav:"Version"`
	Deleted     bool     `dynamodbav:"Deleted"`
}

func newNoteItem(data entities.NoteData) noteItem {
	tags := data.Tags
	if tags == nil {
		tags = []string{}
	}
	return noteItem{
		NoteID:      data.ID,
		UserID:      data.UserID,
		DirectoryID: data.DirectoryID,
		Title:       data.Title,
		Content:     data.Content,
		Summary:     data.Summary,
		Tags:        tags,
		CreatedAt:   formatTime(data.CreatedAt),
		UpdatedAt:   formatTime(data.UpdatedAt),
		Version:     data.Version,
		Deleted:     data.Deleted,
	}
}

func (i noteItem) toNote() (*entities.Note, error) {
	createdAt, err := parseTime(i.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("note %s: invalid CreatedAt: %w", i.NoteID, err)
	}
	updatedAt, err := parseTime(i.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("note %s: invalid UpdatedAt: %w", i.NoteID, err)
	}
	return entities.ReconstructNote(entities.NoteData{
		ID:          i.NoteID,
		UserID:      i.UserID,
		DirectoryID: i.DirectoryID,
		Title:       i.Title,
		Content:     i.Content,
		Summary:     i.Summary,
		Tags:        i.Tags,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		Version:     i.Version,
		Deleted:     i.Deleted,
	})
}

type edgeItem struct {
	PK         string  `dynamodbav:"PK"`
	SK         string  `dynamodbav:"SK"`
	EntityType string  `dynamodbav:"EntityType"`
	EdgeID     string  `dynamodbav:"EdgeID"`
	UserID     string  `dynamodbav:"UserID"`
	SourceID   string  `dynamodbav:"SourceID"`
	TargetID   string  `dynamodbav:"TargetID"`
	Type       string  `dynamodbav:"Type"`
	Weight     float64 `dynamodbav:"Weight"`
	CreatedAt  string  `dynamodbav:"CreatedAt"`
}

func newEdgeItem(e *aggregates.Edge) edgeItem {
	return edgeItem{
		PK:         userPK(e.UserID),
		SK:         edgeSK(e.Key()),
		EntityType: entityEdge,
		EdgeID:     e.ID,
		UserID:     e.UserID,
		SourceID:   e.SourceID,
		TargetID:   e.TargetID,
		Type:       string(e.Type),
		Weight:     e.Weight,
		CreatedAt:  formatTime(e.CreatedAt),
	}
}

func (i edgeItem) toEdge() (*aggregates.Edge, error) {
	createdAt, err := parseTime(i.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("edge %s: invalid CreatedAt: %w", i.EdgeID, err)
	}
	return &aggregates.Edge{
		ID:        i.EdgeID,
		UserID:    i.UserID,
		SourceID:  i.SourceID,
		TargetID:  i.TargetID,
		Type:      aggregates.EdgeType(i.Type),
		Weight:    i.Weight,
		CreatedAt: createdAt,
	}, nil
}

type syncStateItem struct {
	PK           string            `dynamodbav:"PK"`
	SK           string            `dynamodbav:"SK"`
	EntityType   string            `dynamodbav:"EntityType"`
	UserID       string            `dynamodbav:"UserID"`
	LastSyncTime string            `dynamodbav:"LastSyncTime"`
	Baseline     map[string]string `dynamodbav:"Baseline"`
}
