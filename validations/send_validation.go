package validations

import (
	"context"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	domainMessage "github.com/staykit/staywap/domains/message"
	pkgError "github.com/staykit/staywap/pkg/error"
)

// Phones arrive either in E.164 or as the bare digits the gateway uses in
// chat identifiers.
var phoneRule = validation.Match(regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)).
	Error("must be a valid phone number")

func ValidateSendText(ctx context.Context, request domainMessage.SendTextRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.HotelID, validation.Required),
		validation.Field(&request.Phone, validation.Required, phoneRule),
		validation.Field(&request.Message, validation.Required, validation.Length(1, 4096)),
		validation.Field(&request.Priority, validation.In(
			domainMessage.PriorityHigh,
			domainMessage.PriorityNormal,
			domainMessage.PriorityLow,
		)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateSendFile(ctx context.Context, request domainMessage.SendFileRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.HotelID, validation.Required),
		validation.Field(&request.Phone, validation.Required, phoneRule),
		validation.Field(&request.FileURL, validation.Required, is.URL),
		validation.Field(&request.FileName, validation.Required),
		validation.Field(&request.Priority, validation.In(
			domainMessage.PriorityHigh,
			domainMessage.PriorityNormal,
			domainMessage.PriorityLow,
		)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateSendLocation(ctx context.Context, request domainMessage.SendLocationRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.HotelID, validation.Required),
		validation.Field(&request.Phone, validation.Required, phoneRule),
		validation.Field(&request.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&request.Longitude, validation.Min(-180.0), validation.Max(180.0)),
		validation.Field(&request.Priority, validation.In(
			domainMessage.PriorityHigh,
			domainMessage.PriorityNormal,
			domainMessage.PriorityLow,
		)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
