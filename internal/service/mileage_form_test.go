package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mileage-api/internal/models"
	appErrors "github.com/noah-isme/mileage-api/pkg/errors"
)

func jpeg(name string) *ImageUpload {
	return &ImageUpload{Filename: name, Size: 4, MimeType: "image/jpeg", Content: strings.NewReader("jpeg")}
}

func validationDetails(t *testing.T, err error) []string {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	return appErr.Details
}

func TestAcceptImage(t *testing.T) {
	assert.True(t, acceptImage(jpeg("a.jpg"), defaultMaxImageBytes))
	assert.True(t, acceptImage(&ImageUpload{MimeType: "IMAGE/PNG", Size: defaultMaxImageBytes, Content: strings.NewReader("")}, defaultMaxImageBytes))
	assert.False(t, acceptImage(&ImageUpload{MimeType: "text/plain", Size: 10, Content: strings.NewReader("x")}, defaultMaxImageBytes))
	assert.False(t, acceptImage(&ImageUpload{MimeType: "image/jpeg", Size: 6 * 1024 * 1024, Content: strings.NewReader("x")}, defaultMaxImageBytes))
	assert.False(t, acceptImage(&ImageUpload{MimeType: "image/jpeg", Size: 0, Content: strings.NewReader("")}, defaultMaxImageBytes))
	assert.False(t, acceptImage(nil, defaultMaxImageBytes))
}

func TestNewMileageFormSkipsRejectedImages(t *testing.T) {
	form := newMileageForm(formSave, MileageSubmission{
		StartKM:    " 10 ",
		StartPhoto: &ImageUpload{MimeType: "text/plain", Size: 3, Content: strings.NewReader("abc")},
		Images: []ImageUpload{
			*jpeg("ok.jpg"),
			{MimeType: "text/plain", Size: 3, Content: strings.NewReader("abc")},
			{MimeType: "image/png", Size: 6 * 1024 * 1024, Content: strings.NewReader("big")},
		},
	}, defaultMaxImageBytes)

	assert.Equal(t, "10", form.startKMRaw)
	assert.Nil(t, form.startPhoto)
	assert.Len(t, form.images, 1)
	assert.Equal(t, 2, form.skipped)
}

func TestParseKM(t *testing.T) {
	cases := []struct {
		raw  string
		want int
		msg  string
	}{
		{"10", 10, ""},
		{"10.9", 10, ""},
		{"0", 0, ""},
		{"abc", 0, "Start KM must be a valid number."},
		{"NaN", 0, "Start KM must be a valid number."},
		{"Inf", 0, "Start KM must be a valid number."},
		{"-5", 0, "Start KM cannot be negative."},
		{"-0.5", 0, ""},
		{"-1.2", 0, "Start KM cannot be negative."},
	}
	for _, tc := range cases {
		got, msg := parseKM(tc.raw, "Start KM")
		assert.Equal(t, tc.msg, msg, tc.raw)
		if tc.msg == "" {
			assert.Equal(t, tc.want, got, tc.raw)
		}
	}
}

func TestValidateSaveRequiresStartFields(t *testing.T) {
	form := newMileageForm(formSave, MileageSubmission{}, defaultMaxImageBytes)
	_, err := form.validate(nil)
	assert.Equal(t, []string{"Start KM is required.", "Start Photo is required."}, validationDetails(t, err))
}

func TestValidateSubmitItemisesMissingFields(t *testing.T) {
	form := newMileageForm(formSubmit, MileageSubmission{StartKM: "10"}, defaultMaxImageBytes)
	_, err := form.validate(nil)
	assert.Equal(t, []string{
		"Start Photo is required for submission.",
		"End KM is required for submission.",
		"End Photo is required for submission.",
	}, validationDetails(t, err))
}

func TestValidateSubmitFallsBackToDraftPhotos(t *testing.T) {
	endPhoto := "mileage/end.jpg"
	draft := &models.MileageRecord{StartKM: 10, StartPhoto: "mileage/start.jpg", EndPhoto: &endPhoto}
	form := newMileageForm(formSubmit, MileageSubmission{StartKM: "10", EndKM: "100"}, defaultMaxImageBytes)

	km, err := form.validate(draft)
	require.NoError(t, err)
	assert.Equal(t, 10, km.start)
	require.NotNil(t, km.end)
	assert.Equal(t, 100, *km.end)
}

func TestValidateCollectsTypeAndSignErrors(t *testing.T) {
	form := newMileageForm(formSubmit, MileageSubmission{
		StartKM: "ten", EndKM: "-1", StartPhoto: jpeg("s.jpg"), EndPhoto: jpeg("e.jpg"),
	}, defaultMaxImageBytes)
	_, err := form.validate(nil)
	assert.Equal(t, []string{"Start KM must be a valid number.", "End KM cannot be negative."}, validationDetails(t, err))
}

func TestValidateRelationalErrorIsSingle(t *testing.T) {
	form := newMileageForm(formSubmit, MileageSubmission{
		StartKM: "100", EndKM: "100", StartPhoto: jpeg("s.jpg"), EndPhoto: jpeg("e.jpg"),
	}, defaultMaxImageBytes)
	_, err := form.validate(nil)
	assert.Equal(t, []string{"End KM must be greater than Start KM."}, validationDetails(t, err))
}

func TestValidateSaveChecksStoredEnd(t *testing.T) {
	end := 50
	draft := &models.MileageRecord{StartKM: 10, StartPhoto: "s.jpg", EndKM: &end}
	form := newMileageForm(formSave, MileageSubmission{StartKM: "60"}, defaultMaxImageBytes)
	_, err := form.validate(draft)
	assert.Equal(t, []string{"End KM must be greater than Start KM."}, validationDetails(t, err))
}

func TestValidateEditMessages(t *testing.T) {
	form := newMileageForm(formEdit, MileageSubmission{StartKM: "10"}, defaultMaxImageBytes)
	_, err := form.validate(&models.MileageRecord{StartPhoto: "s.jpg"})
	assert.Equal(t, []string{"End KM is required.", "End Photo is required."}, validationDetails(t, err))
}
