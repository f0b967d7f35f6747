package models

// MarkerType classifies a chart marker.
type MarkerType string

const (
	MarkerPOCVenda  MarkerType = "POC_VENDA"
	MarkerPOCCompra MarkerType = "POC_COMPRA"
	MarkerAjuste    MarkerType = "AJUSTE"
)

// Marker is a single chart annotation. Field names are part of the wire format.
type Marker struct {
	Data  string     `json:"Data" validate:"required,datetime=2006-01-02"`
	Hora  string     `json:"Hora" validate:"required"`
	Preco float64    `json:"Preco"`
	Tipo  MarkerType `json:"Tipo" validate:"required,oneof=POC_VENDA POC_COMPRA AJUSTE"`
}

// MarkersRequest is the body of a marker fan-out request, over HTTP or Kafka.
type MarkersRequest struct {
	Symbol  string   `json:"symbol" validate:"required"`
	Markers []Marker `json:"markers" validate:"required,dive"`
}
