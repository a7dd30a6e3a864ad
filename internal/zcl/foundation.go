package zcl

import "fmt"

// Foundation ZCL command IDs (global, not cluster-specific).
const (
	FoundationReadAttributes         uint8 = 0x00
	FoundationReadAttributesResponse uint8 = 0x01
	FoundationWriteAttributes        uint8 = 0x02
	FoundationWriteAttributesResp    uint8 = 0x04
	FoundationConfigReporting        uint8 = 0x06
	FoundationConfigReportingResp    uint8 = 0x07
	FoundationReadReportingConfig    uint8 = 0x08
	FoundationReportAttributes       uint8 = 0x0A
	FoundationDefaultResponse        uint8 = 0x0B
	FoundationDiscoverAttributes     uint8 = 0x0C
	FoundationDiscoverAttributesResp uint8 = 0x0D
)

// ZCL status codes
const (
	ZCLStatusSuccess         uint8 = 0x00
	ZCLStatusFailure         uint8 = 0x01
	ZCLStatusNotAuthorized   uint8 = 0x7E
	ZCLStatusMalformed       uint8 = 0x80
	ZCLStatusUnsupClusterCmd uint8 = 0x81
	ZCLStatusUnsupGeneralCmd uint8 = 0x82
	ZCLStatusUnsupMfgCmd     uint8 = 0x84
	ZCLStatusInvalidField    uint8 = 0x85
	ZCLStatusUnsupportedAttr uint8 = 0x86
	ZCLStatusInvalidValue    uint8 = 0x87
	ZCLStatusReadOnly        uint8 = 0x88
	ZCLStatusNotFound        uint8 = 0x8B
	ZCLStatusUnreportable    uint8 = 0x8C
	ZCLStatusInvalidDataType uint8 = 0x8D
	ZCLStatusTimeout         uint8 = 0x94
)

var statusNames = map[uint8]string{
	ZCLStatusSuccess:         "SUCCESS",
	ZCLStatusFailure:         "FAILURE",
	ZCLStatusNotAuthorized:   "NOT_AUTHORIZED",
	ZCLStatusMalformed:       "MALFORMED_COMMAND",
	ZCLStatusUnsupClusterCmd: "UNSUP_CLUSTER_COMMAND",
	ZCLStatusUnsupGeneralCmd: "UNSUP_GENERAL_COMMAND",
	ZCLStatusUnsupMfgCmd:     "UNSUP_MANUF_CLUSTER_COMMAND",
	ZCLStatusInvalidField:    "INVALID_FIELD",
	ZCLStatusUnsupportedAttr: "UNSUPPORTED_ATTRIBUTE",
	ZCLStatusInvalidValue:    "INVALID_VALUE",
	ZCLStatusReadOnly:        "READ_ONLY",
	ZCLStatusNotFound:        "NOT_FOUND",
	ZCLStatusUnreportable:    "UNREPORTABLE_ATTRIBUTE",
	ZCLStatusInvalidDataType: "INVALID_DATA_TYPE",
	ZCLStatusTimeout:         "TIMEOUT",
}

// StatusName returns the ZCL name of a status code.
func StatusName(status uint8) string {
	if n, ok := statusNames[status]; ok {
		return n
	}
	return fmt.Sprintf("0x%02X", status)
}

var foundationNames = map[uint8]string{
	FoundationReadAttributes:         "ReadAttributes",
	FoundationReadAttributesResponse: "ReadAttributesResponse",
	FoundationWriteAttributes:        "WriteAttributes",
	FoundationWriteAttributesResp:    "WriteAttributesResponse",
	FoundationConfigReporting:        "ConfigureReporting",
	FoundationConfigReportingResp:    "ConfigureReportingResponse",
	FoundationReadReportingConfig:    "ReadReportingConfiguration",
	FoundationReportAttributes:       "ReportAttributes",
	FoundationDefaultResponse:        "DefaultResponse",
	FoundationDiscoverAttributes:     "DiscoverAttributes",
	FoundationDiscoverAttributesResp: "DiscoverAttributesResponse",
}

// FoundationName returns the name of a global command.
func FoundationName(cmd uint8) string {
	if n, ok := foundationNames[cmd]; ok {
		return n
	}
	return fmt.Sprintf("0x%02X", cmd)
}
