package database

import (
	"time"

	"imagevault/internal/metadata"
)

// ImageRow mirrors metadata.Record. created_at is stored in the fixed-width
// metadata.TimeLayout so range filters compare as text.
type ImageRow struct {
	ID              string `gorm:"primaryKey;type:text"`
	UserID          string `gorm:"type:text;not null"`
	S3Key           string `gorm:"type:text;not null"`
	S3URL           string `gorm:"type:text"`
	Filename        string `gorm:"type:text;not null"`
	Title           string
	Description     string
	Category        string `gorm:"type:text"`
	IsPublic        bool   `gorm:"not null"`
	ContentType     string
	FileSize        int64
	Width           int
	Height          int
	UploadTimestamp string
	CreatedAt       string `gorm:"type:text;not null"`

	Tags []ImageTag `gorm:"foreignKey:ImageID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (ImageRow) TableName() string { return "images" }

type ImageTag struct {
	ImageID string `gorm:"primaryKey;type:text"`
	Tag     string `gorm:"primaryKey;type:text"`
}

func (ImageTag) TableName() string { return "image_tags" }

func rowFromRecord(r *metadata.Record) ImageRow {
	return ImageRow{
		ID:              r.ImageID,
		UserID:          r.OwnerID,
		S3Key:           r.ObjectKey,
		S3URL:           r.ObjectURL,
		Filename:        r.Filename,
		Title:           r.Title,
		Description:     r.Description,
		Category:        r.Category,
		IsPublic:        r.IsPublic,
		ContentType:     r.ContentType,
		FileSize:        r.ByteSize,
		Width:           r.Width,
		Height:          r.Height,
		UploadTimestamp: r.UploadTimestamp,
		CreatedAt:       r.CreatedAt.UTC().Format(metadata.TimeLayout),
	}
}

func (row *ImageRow) record() metadata.Record {
	created, _ := time.Parse(metadata.TimeLayout, row.CreatedAt)
	tags := make([]string, 0, len(row.Tags))
	for _, t := range row.Tags {
		tags = append(tags, t.Tag)
	}
	return metadata.Record{
		ImageID:         row.ID,
		OwnerID:         row.UserID,
		ObjectKey:       row.S3Key,
		ObjectURL:       row.S3URL,
		Filename:        row.Filename,
		Title:           row.Title,
		Description:     row.Description,
		Category:        row.Category,
		Tags:            tags,
		IsPublic:        row.IsPublic,
		ContentType:     row.ContentType,
		ByteSize:        row.FileSize,
		Width:           row.Width,
		Height:          row.Height,
		UploadTimestamp: row.UploadTimestamp,
		CreatedAt:       created,
	}
}
