package service

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"ebike-booking/internal/models"

	"github.com/shopspring/decimal"
)

// Draft is an inbound booking request. Clients have historically sent the same
// concept under several names, so UnmarshalJSON accepts every known alias and
// the rest of the service only ever sees these canonical fields.
type Draft struct {
	OrderID             string
	Email               string
	FullName            string
	Phone               string
	Model               string
	Color               string
	Image               string
	Subtotal            *decimal.Decimal
	ShippingFee         *decimal.Decimal
	Total               *decimal.Decimal
	PaymentMethod       string
	ServiceType         string
	ScheduleDate        string
	ScheduleTime        string
	Status              string
	FulfillmentStatus   string
	ShippingAddress     string
	ShippingCoordinates *models.Coordinates
	Installment         *InstallmentDraft
}

// InstallmentDraft carries the financing choice made in the installment wizard
type InstallmentDraft struct {
	MonthsToPay int
	DownPayment *decimal.Decimal
	SRP         *decimal.Decimal
}

var draftAliases = map[string][]string{
	"orderId":             {"orderId", "order_id", "id", "reference"},
	"email":               {"email", "ownerEmail", "userEmail", "owner_email"},
	"fullName":            {"fullName", "full_name", "name", "customerName"},
	"phone":               {"phone", "contactNumber", "mobile", "phoneNumber"},
	"model":               {"model", "productName", "itemName", "product"},
	"color":               {"color", "colorVariant", "variant"},
	"image":               {"image", "unitImageRef", "imageUrl", "img"},
	"subtotal":            {"subtotal", "price"},
	"shippingFee":         {"shippingFee", "shipping_fee", "deliveryFee"},
	"total":               {"total", "totalAmount"},
	"paymentMethod":       {"paymentMethod", "payment_method", "payment"},
	"serviceType":         {"serviceType", "service_type", "service"},
	"scheduleDate":        {"scheduleDate", "schedule_date", "date", "bookingDate"},
	"scheduleTime":        {"scheduleTime", "schedule_time", "time", "bookingTime"},
	"status":              {"status"},
	"fulfillmentStatus":   {"fulfillmentStatus", "fulfillment_status"},
	"shippingAddress":     {"shippingAddress", "address"},
	"shippingCoordinates": {"shippingCoordinates", "coordinates"},
	"installment":         {"installment", "installmentPlan"},
	"monthsToPay":         {"monthsToPay", "months", "term"},
	"downPayment":         {"downPayment", "down_payment", "downpayment"},
	"srp":                 {"srp", "SRP"},
}

type rawFields map[string]json.RawMessage

// pick returns the first alias of field that is present and not null
func (r rawFields) pick(field string) (json.RawMessage, bool) {
	for _, key := range draftAliases[field] {
		v, ok := r[key]
		if ok && len(v) > 0 && !bytes.Equal(v, []byte("null")) {
			return v, true
		}
	}
	return nil, false
}

func (r rawFields) str(field string) (string, error) {
	raw, ok := r.pick(field)
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", validationError("invalid_field", "%s must be a string", field)
}

func (r rawFields) money(field string) (*decimal.Decimal, error) {
	raw, ok := r.pick(field)
	if !ok {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" {
			return nil, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, validationError("invalid_amount", "%s must be a number", field)
		}
		return &d, nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return nil, validationError("invalid_amount", "%s must be a number", field)
	}
	return &d, nil
}

func (r rawFields) integer(field string) (int, error) {
	s, err := r.str(field)
	if err != nil || s == "" {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, validationError("invalid_field", "%s must be a whole number", field)
	}
	return n, nil
}

// UnmarshalJSON accepts every alias listed in draftAliases
func (d *Draft) UnmarshalJSON(data []byte) error {
	var r rawFields
	if err := json.Unmarshal(data, &r); err != nil {
		return validationError("invalid_body", "booking draft must be a JSON object")
	}

	var err error
	strFields := []struct {
		name string
		dst  *string
	}{
		{"orderId", &d.OrderID},
		{"email", &d.Email},
		{"fullName", &d.FullName},
		{"phone", &d.Phone},
		{"model", &d.Model},
		{"color", &d.Color},
		{"image", &d.Image},
		{"paymentMethod", &d.PaymentMethod},
		{"serviceType", &d.ServiceType},
		{"scheduleDate", &d.ScheduleDate},
		{"scheduleTime", &d.ScheduleTime},
		{"status", &d.Status},
		{"fulfillmentStatus", &d.FulfillmentStatus},
		{"shippingAddress", &d.ShippingAddress},
	}
	for _, f := range strFields {
		if *f.dst, err = r.str(f.name); err != nil {
			return err
		}
	}

	if d.Subtotal, err = r.money("subtotal"); err != nil {
		return err
	}
	if d.ShippingFee, err = r.money("shippingFee"); err != nil {
		return err
	}
	if d.Total, err = r.money("total"); err != nil {
		return err
	}

	if raw, ok := r.pick("shippingCoordinates"); ok {
		var c models.Coordinates
		if err := json.Unmarshal(raw, &c); err != nil {
			return validationError("invalid_field", "shippingCoordinates must be {lat, lng}")
		}
		d.ShippingCoordinates = &c
	}

	// the installment choice arrives either nested or flattened into the draft
	plan := r
	if raw, ok := r.pick("installment"); ok {
		var nested rawFields
		if err := json.Unmarshal(raw, &nested); err != nil {
			return validationError("invalid_field", "installment must be an object")
		}
		plan = nested
	}
	months, err := plan.integer("monthsToPay")
	if err != nil {
		return err
	}
	down, err := plan.money("downPayment")
	if err != nil {
		return err
	}
	srp, err := plan.money("srp")
	if err != nil {
		return err
	}
	if months != 0 || down != nil || srp != nil {
		d.Installment = &InstallmentDraft{MonthsToPay: months, DownPayment: down, SRP: srp}
	}

	return nil
}

// parsePaymentMethod maps free-text method names onto the two accepted methods.
// Wallet brands are refused outright.
func parsePaymentMethod(raw string) (models.PaymentMethod, error) {
	norm := models.NormalizeLabel(raw)
	switch norm {
	case "":
		return "", nil
	case "cash on delivery", "cod", "cash":
		return models.PaymentMethodCashOnDelivery, nil
	case "installment", "installments":
		return models.PaymentMethodInstallment, nil
	}
	compact := strings.ReplaceAll(norm, " ", "")
	if compact == "gcash" || compact == "maya" || compact == "paymaya" {
		return "", validationError("payment_method_not_supported",
			"%s is no longer accepted; choose cash on delivery or installment", raw)
	}
	return "", validationError("payment_method_not_supported", "unknown payment method %q", raw)
}

func parseServiceType(raw string) (models.ServiceType, error) {
	switch strings.ReplaceAll(models.NormalizeLabel(raw), " ", "") {
	case "":
		return "", nil
	case "delivery":
		return models.ServiceTypeDelivery, nil
	case "pickup":
		return models.ServiceTypePickUp, nil
	case "installment":
		return models.ServiceTypeInstallment, nil
	}
	return "", validationError("invalid_service_type", "unknown service type %q", raw)
}
