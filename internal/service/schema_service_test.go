package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

type schemaFixture struct {
	service    *SchemaService
	fields     *fakeFieldRepo
	values     *fakeFieldValueRepo
	categories *fakeCategoryRepo
	tickets    *fakeTicketRepo
	category   *domain.Category
}

func newSchemaFixture(t *testing.T) *schemaFixture {
	t.Helper()
	fields := newFakeFieldRepo()
	values := newFakeFieldValueRepo()
	categories := newFakeCategoryRepo()
	tickets := newFakeTicketRepo()
	category := categories.add(domain.Category{
		Name:            "Technical Support",
		DefaultPriority: domain.TicketPriorityMedium,
		SLAHours:        24,
		IsActive:        true,
	})
	return &schemaFixture{
		service: NewSchemaService(SchemaDependencies{
			FieldRepo:      fields,
			FieldValueRepo: values,
			CategoryRepo:   categories,
			TicketRepo:     tickets,
		}),
		fields:     fields,
		values:     values,
		categories: categories,
		tickets:    tickets,
		category:   category,
	}
}

// issueTypeSchema seeds a select field plus a conditional follow-up that only
// shows when issue_type is "hardware".
func (fx *schemaFixture) issueTypeSchema() (issueType, serialNumber *domain.CategoryField) {
	issueType = fx.fields.add(domain.CategoryField{
		CategoryID: fx.category.ID,
		Name:       "issue_type",
		Label:      "Issue type",
		Type:       domain.FieldTypeSelect,
		Required:   true,
		Position:   1,
		Options:    []string{"hardware", "software"},
		IsActive:   true,
	})
	serialNumber = fx.fields.add(domain.CategoryField{
		CategoryID: fx.category.ID,
		Name:       "serial_number",
		Label:      "Serial number",
		Type:       domain.FieldTypeText,
		Required:   true,
		Position:   2,
		Condition:  &domain.FieldCondition{FieldID: issueType.ID, Equals: "hardware"},
		IsActive:   true,
	})
	return issueType, serialNumber
}

func TestValidateSubmissionRequiredMissing(t *testing.T) {
	fx := newSchemaFixture(t)
	fx.issueTypeSchema()

	_, err := fx.service.ValidateSubmission(context.Background(), fx.category.ID, map[string]any{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
}

func TestValidateSubmissionConditionHidden(t *testing.T) {
	fx := newSchemaFixture(t)
	fx.issueTypeSchema()

	// serial_number is required but hidden while issue_type is "software".
	values, err := fx.service.ValidateSubmission(context.Background(), fx.category.ID,
		map[string]any{"issue_type": "software"})
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "issue_type", values[0].FieldName)
	assert.Equal(t, "software", values[0].Scalar)
}

func TestValidateSubmissionConditionVisible(t *testing.T) {
	fx := newSchemaFixture(t)
	fx.issueTypeSchema()
	ctx := context.Background()

	_, err := fx.service.ValidateSubmission(ctx, fx.category.ID,
		map[string]any{"issue_type": "hardware"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	values, err := fx.service.ValidateSubmission(ctx, fx.category.ID,
		map[string]any{"issue_type": "hardware", "serial_number": "SN-0042"})
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "SN-0042", values[1].Scalar)
}

func TestValidateSubmissionListContainsCondition(t *testing.T) {
	fx := newSchemaFixture(t)
	affected := fx.fields.add(domain.CategoryField{
		CategoryID: fx.category.ID,
		Name:       "affected_systems",
		Type:       domain.FieldTypeCheckboxSet,
		Position:   1,
		Options:    []string{"email", "vpn", "crm"},
		IsActive:   true,
	})
	fx.fields.add(domain.CategoryField{
		CategoryID: fx.category.ID,
		Name:       "vpn_client_version",
		Type:       domain.FieldTypeText,
		Required:   true,
		Position:   2,
		Condition:  &domain.FieldCondition{FieldID: affected.ID, Equals: "vpn"},
		IsActive:   true,
	})
	ctx := context.Background()

	// Condition matches any element of a checkbox-set value.
	_, err := fx.service.ValidateSubmission(ctx, fx.category.ID,
		map[string]any{"affected_systems": []string{"email", "vpn"}})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	values, err := fx.service.ValidateSubmission(ctx, fx.category.ID,
		map[string]any{"affected_systems": []string{"email"}})
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, domain.ValueKindList, values[0].Kind)
	assert.Equal(t, []string{"email"}, values[0].List)
}

func TestValidateSubmissionTypeRules(t *testing.T) {
	fx := newSchemaFixture(t)
	fx.fields.add(domain.CategoryField{
		CategoryID: fx.category.ID, Name: "contact_email", Type: domain.FieldTypeEmail,
		Position: 1, IsActive: true,
	})
	fx.fields.add(domain.CategoryField{
		CategoryID: fx.category.ID, Name: "purchase_date", Type: domain.FieldTypeDate,
		Position: 2, IsActive: true,
	})
	fx.fields.add(domain.CategoryField{
		CategoryID: fx.category.ID, Name: "region", Type: domain.FieldTypeRadio,
		Position: 3, Options: []string{"emea", "apac"}, IsActive: true,
	})
	ctx := context.Background()

	cases := []struct {
		name string
		form map[string]any
		ok   bool
	}{
		{"valid email", map[string]any{"contact_email": "sam@example.com"}, true},
		{"bad email", map[string]any{"contact_email": "not-an-email"}, false},
		{"valid date", map[string]any{"purchase_date": "2026-02-17"}, true},
		{"bad date", map[string]any{"purchase_date": "17/02/2026"}, false},
		{"valid option", map[string]any{"region": "emea"}, true},
		{"unknown option", map[string]any{"region": "latam"}, false},
		{"non-string scalar", map[string]any{"region": 42}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.service.ValidateSubmission(ctx, fx.category.ID, tc.form)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
			}
		})
	}
}

func TestValidateSubmissionOptionalBlankSkipped(t *testing.T) {
	fx := newSchemaFixture(t)
	fx.fields.add(domain.CategoryField{
		CategoryID: fx.category.ID, Name: "notes", Type: domain.FieldTypeTextarea,
		Position: 1, IsActive: true,
	})

	values, err := fx.service.ValidateSubmission(context.Background(), fx.category.ID,
		map[string]any{"notes": "   "})
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestCreateFieldValidation(t *testing.T) {
	fx := newSchemaFixture(t)
	ctx := context.Background()

	_, err := fx.service.CreateField(ctx, fx.category.ID, FieldInput{
		Name: "Bad Name", Type: domain.FieldTypeText, Position: 1, IsActive: true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, err = fx.service.CreateField(ctx, fx.category.ID, FieldInput{
		Name: "severity", Type: domain.FieldType("slider"), Position: 1, IsActive: true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, err = fx.service.CreateField(ctx, fx.category.ID, FieldInput{
		Name: "severity", Type: domain.FieldTypeSelect, Position: 1, IsActive: true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, err = fx.service.CreateField(ctx, "missing", FieldInput{
		Name: "severity", Type: domain.FieldTypeText, Position: 1, IsActive: true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestCreateFieldDuplicateName(t *testing.T) {
	fx := newSchemaFixture(t)
	fx.issueTypeSchema()

	_, err := fx.service.CreateField(context.Background(), fx.category.ID, FieldInput{
		Name: "issue_type", Type: domain.FieldTypeText, Position: 3, IsActive: true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
}

func TestCreateFieldConditionMustReferenceEarlierField(t *testing.T) {
	fx := newSchemaFixture(t)
	issueType, _ := fx.issueTypeSchema()
	ctx := context.Background()

	// Pointing at a later or equal position is rejected.
	_, err := fx.service.CreateField(ctx, fx.category.ID, FieldInput{
		Name: "model", Type: domain.FieldTypeText, Position: 1, IsActive: true,
		Condition: &domain.FieldCondition{FieldID: issueType.ID, Equals: "hardware"},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, err = fx.service.CreateField(ctx, fx.category.ID, FieldInput{
		Name: "model", Type: domain.FieldTypeText, Position: 3, IsActive: true,
		Condition: &domain.FieldCondition{FieldID: "missing", Equals: "hardware"},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	field, err := fx.service.CreateField(ctx, fx.category.ID, FieldInput{
		Name: "model", Type: domain.FieldTypeText, Position: 3, IsActive: true,
		Condition: &domain.FieldCondition{FieldID: issueType.ID, Equals: "hardware"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, field.ID)
}

func TestUpdateFieldNoSelfCondition(t *testing.T) {
	fx := newSchemaFixture(t)
	issueType, _ := fx.issueTypeSchema()

	_, err := fx.service.UpdateField(context.Background(), issueType.ID, FieldInput{
		Name: "issue_type", Type: domain.FieldTypeSelect, Position: 1, IsActive: true,
		Options:   []string{"hardware", "software"},
		Condition: &domain.FieldCondition{FieldID: issueType.ID, Equals: "hardware"},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
}

func TestUpdateFieldFrozenOnceValuesExist(t *testing.T) {
	fx := newSchemaFixture(t)
	issueType, _ := fx.issueTypeSchema()
	fx.fields.hasValues[issueType.ID] = true
	ctx := context.Background()

	_, err := fx.service.UpdateField(ctx, issueType.ID, FieldInput{
		Name: "issue_kind", Type: domain.FieldTypeSelect, Position: 1, IsActive: true,
		Options: []string{"hardware", "software"},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, err = fx.service.UpdateField(ctx, issueType.ID, FieldInput{
		Name: "issue_type", Type: domain.FieldTypeText, Position: 1, IsActive: true,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	// Label and options stay editable.
	updated, err := fx.service.UpdateField(ctx, issueType.ID, FieldInput{
		Name: "issue_type", Label: "Kind of issue", Type: domain.FieldTypeSelect,
		Position: 1, IsActive: true,
		Options:  []string{"hardware", "software", "network"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Kind of issue", updated.Label)
	assert.Len(t, updated.Options, 3)
}

func TestUpdateOrderRejectsBrokenConditionOrder(t *testing.T) {
	fx := newSchemaFixture(t)
	issueType, serialNumber := fx.issueTypeSchema()
	ctx := context.Background()

	err := fx.service.UpdateOrder(ctx, fx.category.ID, map[string]int{
		issueType.ID:    2,
		serialNumber.ID: 1,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	err = fx.service.UpdateOrder(ctx, fx.category.ID, map[string]int{
		issueType.ID:    1,
		serialNumber.ID: 3,
	})
	require.NoError(t, err)

	fields, err := fx.service.FieldsFor(ctx, fx.category.ID, true)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "issue_type", fields[0].Name)

	err = fx.service.UpdateOrder(ctx, fx.category.ID, map[string]int{"missing": 1})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestDeleteFieldDeactivatesWhenValuesExist(t *testing.T) {
	fx := newSchemaFixture(t)
	issueType, serialNumber := fx.issueTypeSchema()
	fx.fields.hasValues[issueType.ID] = true
	ctx := context.Background()

	require.NoError(t, fx.service.DeleteField(ctx, issueType.ID))
	kept, err := fx.fields.GetByID(ctx, issueType.ID)
	require.NoError(t, err)
	assert.False(t, kept.IsActive)

	require.NoError(t, fx.service.DeleteField(ctx, serialNumber.ID))
	_, err = fx.fields.GetByID(ctx, serialNumber.ID)
	assert.Error(t, err)

	err = fx.service.DeleteField(ctx, "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestPersistValuesRejectsClosedTicket(t *testing.T) {
	fx := newSchemaFixture(t)
	ctx := context.Background()

	ticket := &domain.Ticket{
		RequesterID: "user-1",
		CategoryID:  fx.category.ID,
		Title:       "t",
		Description: "d",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityMedium,
	}
	require.NoError(t, fx.tickets.Create(ctx, ticket, nil, nil))

	value := domain.FieldValue{FieldID: "field-1", FieldName: "notes", Kind: domain.ValueKindScalar, Scalar: "x"}
	require.NoError(t, fx.service.PersistValues(ctx, ticket.ID, []domain.FieldValue{value}))

	fx.tickets.tickets[ticket.ID].Status = domain.TicketStatusClosed
	err := fx.service.PersistValues(ctx, ticket.ID, []domain.FieldValue{value})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeTerminalState))

	stored, err := fx.service.ValuesFor(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
