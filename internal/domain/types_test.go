package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnumNames(t *testing.T) {
	assert.Equal(t, "Admin", RoleAdmin.Name())
	assert.Equal(t, "Child", RoleChild.Name())
	assert.Equal(t, NotAvailable, Role(42).Name())
	assert.Equal(t, "UserManagement", MenuUserManagement.Name())
	assert.Equal(t, NotAvailable, MenuItem(-1).Name())
	assert.Equal(t, "Document", ChatTypeDocument.Name())
}

func TestConvertToListIsOrdered(t *testing.T) {
	list := MenuItemList()
	assert.Len(t, list, 10)
	assert.Equal(t, EnumEntry{ID: 0, Value: "Home"}, list[0])
	assert.Equal(t, EnumEntry{ID: 9, Value: "Reports"}, list[9])
}

func TestReportType(t *testing.T) {
	assert.True(t, DetailedReport.Valid())
	assert.False(t, ReportType("poem").Valid())
	assert.Equal(t, "Research Report", ResearchReport.Words())
	assert.Equal(t, 0.5, ResearchReport.UsageWeight())
	assert.Equal(t, 0.5, DetailedReport.UsageWeight())
	assert.Equal(t, 1.0, OutlineReport.UsageWeight())
}

func TestSearchEngineParam(t *testing.T) {
	assert.Equal(t, "google", EngineGoogle.Param())
	assert.Equal(t, "bing", EngineBing.Param())
	assert.Equal(t, "google_scholar", EngineGoogleScholar.Param())
	assert.Equal(t, "google", SearchEngine(7).Param())
}
