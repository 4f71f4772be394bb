package regon

import (
	"encoding/xml"
	"strings"
	"time"

	"companyhub/internal/providers"
)

// EntityType is the BIR classification of a registered entity.
type EntityType string

const (
	EntityLegalPerson            EntityType = "P"
	EntityNaturalPerson          EntityType = "F"
	EntityLocalLegalPersonUnit   EntityType = "LP"
	EntityLocalNaturalPersonUnit EntityType = "LF"
)

// Each entity type has exactly one detailed report in the BIR11 family.
var reportByEntityType = map[EntityType]string{
	EntityLegalPerson:            "BIR11OsPrawna",
	EntityNaturalPerson:          "BIR11OsFizycznaDzialalnoscCeidg",
	EntityLocalLegalPersonUnit:   "BIR11JednLokalnaOsPrawnej",
	EntityLocalNaturalPersonUnit: "BIR11JednLokalnaOsFizycznej",
}

// MapEntityType maps a BIR type code, defaulting unknown codes to legal
// person so a garbled type still yields a usable report request.
func MapEntityType(code string) EntityType {
	switch EntityType(strings.ToUpper(strings.TrimSpace(code))) {
	case EntityNaturalPerson:
		return EntityNaturalPerson
	case EntityLocalLegalPersonUnit:
		return EntityLocalLegalPersonUnit
	case EntityLocalNaturalPersonUnit:
		return EntityLocalNaturalPersonUnit
	default:
		return EntityLegalPerson
	}
}

// ReportName returns the BIR11 report matching the entity type.
func ReportName(t EntityType) string {
	return reportByEntityType[t]
}

// searchResult is the decoded DaneSzukajPodmioty payload.
type searchResult struct {
	Found   bool
	Fields  map[string]string
	Message string
}

// parseSearchXML decodes the inner search XML. The payload is a flat list of
// <dane> records; only the first is used. Unparseable XML degrades to a
// not-found result with a diagnostic message rather than an error.
func parseSearchXML(inner string) searchResult {
	inner = strings.TrimSpace(inner)
	if inner == "" {
		return searchResult{Message: "empty search result"}
	}

	type record struct {
		XMLName xml.Name
		Nodes   []struct {
			XMLName xml.Name
			Value   string `xml:",chardata"`
		} `xml:",any"`
	}
	type root struct {
		Records []record `xml:"dane"`
	}

	var doc root
	if err := xml.Unmarshal([]byte(wrapRoot(inner)), &doc); err != nil {
		return searchResult{Message: "unparseable search result: " + err.Error()}
	}
	if len(doc.Records) == 0 {
		return searchResult{Message: "no companies found"}
	}

	fields := make(map[string]string, len(doc.Records[0].Nodes))
	for _, node := range doc.Records[0].Nodes {
		fields[node.XMLName.Local] = strings.TrimSpace(node.Value)
	}
	if len(fields) == 0 {
		return searchResult{Message: "no company data extracted"}
	}
	return searchResult{Found: true, Fields: fields}
}

// parseReportXML flattens the inner report XML into a field map. When the
// report cannot be parsed the raw text is preserved so nothing is lost.
func parseReportXML(inner, reportName string) providers.Payload {
	payload := providers.Payload{"report_type": reportName}

	inner = strings.TrimSpace(inner)
	if inner == "" {
		payload["message"] = "empty report"
		return payload
	}

	var doc reportNode
	if err := xml.Unmarshal([]byte(wrapRoot(inner)), &doc); err != nil {
		payload["raw_response"] = truncate(inner, 1000)
		return payload
	}

	fields := make(map[string]any)
	for _, child := range doc.Nodes {
		child.flatten(fields)
	}
	if len(fields) == 0 {
		payload["raw_response"] = truncate(inner, 1000)
		return payload
	}
	payload["data"] = fields
	return payload
}

type reportNode struct {
	XMLName xml.Name
	Value   string       `xml:",chardata"`
	Nodes   []reportNode `xml:",any"`
}

// flatten collapses the report tree into leaf-name -> text, which matches
// how the BIR11 reports nest a single <dane> record of flat fields.
func (n reportNode) flatten(out map[string]any) {
	if len(n.Nodes) == 0 {
		if v := strings.TrimSpace(n.Value); v != "" {
			out[n.XMLName.Local] = v
		}
		return
	}
	for _, child := range n.Nodes {
		child.flatten(out)
	}
}

// basicInfo composes the normalized search portion of the payload.
func basicInfo(nip string, res searchResult, now time.Time) providers.Payload {
	if !res.Found {
		msg := res.Message
		if msg == "" {
			msg = "company not found in REGON database"
		}
		return providers.Payload{
			"found":      false,
			"nip":        nip,
			"message":    msg,
			"fetched_at": now.UTC().Format(time.RFC3339),
		}
	}
	return providers.Payload{
		"found":       true,
		"nip":         nip,
		"regon":       res.Fields["Regon"],
		"name":        res.Fields["Nazwa"],
		"entity_type": string(MapEntityType(res.Fields["Typ"])),
		"fetched_at":  now.UTC().Format(time.RFC3339),
	}
}

func wrapRoot(inner string) string {
	return "<root>" + inner + "</root>"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
