package application

import "github.com/delivery-platform/delivery-rate-service/internal/domain"

// ToDeliveryLineDTO converts a domain DeliveryLine to DeliveryLineDTO
func ToDeliveryLineDTO(line *domain.DeliveryLine) *DeliveryLineDTO {
	if line == nil {
		return nil
	}

	dto := &DeliveryLineDTO{
		LineID:        line.LineID,
		OrderID:       line.OrderID,
		CustomerName:  line.CustomerName,
		Address:       ToAddressDTO(line.Address),
		Latitude:      line.Latitude,
		Longitude:     line.Longitude,
		DistanceMiles: line.DistanceMiles,
		PriceLocked:   line.PriceLocked,
		CreatedAt:     line.CreatedAt,
		UpdatedAt:     line.UpdatedAt,
		QuotedAt:      line.QuotedAt,
	}

	if line.Quote != nil {
		quote := ToPriceQuoteDTO(*line.Quote)
		dto.Quote = &quote
	}

	return dto
}

// ToAddressDTO converts a domain Address to AddressDTO
func ToAddressDTO(address domain.Address) AddressDTO {
	return AddressDTO{
		Street:     address.Street,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
	}
}

// ToPriceQuoteDTO converts a domain PriceQuote to PriceQuoteDTO
func ToPriceQuoteDTO(quote domain.PriceQuote) PriceQuoteDTO {
	return PriceQuoteDTO{
		DistanceMiles: quote.DistanceMiles,
		RatePerMile:   quote.RatePerMile,
		Amount:        quote.Amount,
		Method:        string(quote.Method),
		QuotedAt:      quote.QuotedAt,
	}
}

// ToAvailabilityDTO converts a verdict plus optional figures to a DTO
func ToAvailabilityDTO(verdict domain.AvailabilityVerdict, distanceMiles, estimatedAmount *float64) *AvailabilityDTO {
	return &AvailabilityDTO{
		Available:       verdict.Available,
		Reason:          string(verdict.Reason),
		DistanceMiles:   distanceMiles,
		EstimatedAmount: estimatedAmount,
	}
}
