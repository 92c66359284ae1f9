package moex

import (
	"fmt"
	"net/url"
)

// Endpoint identifies an ISS resource. Its value doubles as the provenance
// tag of fetched payloads and as the metrics label.
type Endpoint string

const (
	EndpointBondBoard    Endpoint = "bond_board"
	EndpointBondSecurity Endpoint = "bond_security"
	EndpointShareQuote   Endpoint = "share_quote"
	EndpointFundQuote    Endpoint = "fund_quote"
	EndpointDividends    Endpoint = "dividends"
	EndpointCoupons      Endpoint = "coupons"
)

// Format is the payload shape an endpoint returns.
type Format int

const (
	FormatXML Format = iota
	FormatJSON
)

type route struct {
	path   string // %s is replaced with the escaped ticker
	format Format
	query  url.Values
}

var routes = map[Endpoint]route{
	EndpointBondBoard: {
		path:   "/engines/stock/markets/bonds/securities.xml",
		format: FormatXML,
		query:  url.Values{"iss.meta": {"off"}},
	},
	EndpointBondSecurity: {
		path:   "/engines/stock/markets/bonds/securities/%s.json",
		format: FormatJSON,
		query:  url.Values{"iss.meta": {"off"}},
	},
	EndpointShareQuote: {
		path:   "/engines/stock/markets/shares/securities/%s.json",
		format: FormatJSON,
		query:  url.Values{"iss.meta": {"off"}, "iss.only": {"marketdata"}, "marketdata.columns": {"SECID,LAST"}},
	},
	EndpointFundQuote: {
		path:   "/engines/stock/markets/shares/securities/%s.json",
		format: FormatJSON,
		query:  url.Values{"iss.meta": {"off"}, "iss.only": {"marketdata"}, "marketdata.columns": {"SECID,MARKETPRICE"}},
	},
	EndpointDividends: {
		path:   "/securities/%s/dividends.json",
		format: FormatJSON,
		query:  url.Values{"iss.meta": {"off"}, "dividends.columns": {"registryclosedate,value"}},
	},
	EndpointCoupons: {
		path:   "/engines/stock/markets/bonds/securities/%s.json",
		format: FormatJSON,
		query:  url.Values{"iss.meta": {"off"}, "iss.only": {"securities"}},
	},
}

// PerInstrument reports whether the endpoint needs a ticker.
func (e Endpoint) PerInstrument() bool {
	return e != EndpointBondBoard
}

func (e Endpoint) resolve(baseURL, ticker string) (string, Format, error) {
	r, ok := routes[e]
	if !ok {
		return "", 0, fmt.Errorf("unknown endpoint %q", e)
	}
	path := r.path
	if e.PerInstrument() {
		if ticker == "" {
			return "", 0, fmt.Errorf("endpoint %s requires a ticker", e)
		}
		path = fmt.Sprintf(path, url.PathEscape(ticker))
	}
	return baseURL + path + "?" + r.query.Encode(), r.format, nil
}
