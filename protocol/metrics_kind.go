package protocol

import "github.com/cedardb/pgwire/message"

// frontendKind maps a FrontendMessage to its wire Kind byte for metrics
// labeling. StartupMessage carries no Kind byte (§4.2) and doesn't
// implement FrontendMessage at all; Startup encodes and writes it directly
// rather than through Conn.send, so it never reaches this function.
func frontendKind(msg message.FrontendMessage) (byte, bool) {
	switch msg.(type) {
	case *message.Bind:
		return byte(message.KindBind), true
	case *message.Close:
		return byte(message.KindClose), true
	case *message.CopyData:
		return byte(message.KindCopyDataFE), true
	case *message.CopyDone:
		return byte(message.KindCopyDoneFE), true
	case *message.CopyFail:
		return byte(message.KindCopyFail), true
	case *message.Describe:
		return byte(message.KindDescribe), true
	case *message.Execute:
		return byte(message.KindExecute), true
	case *message.Flush:
		return byte(message.KindFlush), true
	case *message.Parse:
		return byte(message.KindParse), true
	case *message.PasswordMessage:
		return byte(message.KindPassword), true
	case *message.Query:
		return byte(message.KindQuery), true
	case *message.Sync:
		return byte(message.KindSync), true
	case *message.Terminate:
		return byte(message.KindTerminate), true
	default:
		return 0, false
	}
}

// backendKind maps a BackendMessage to its wire Kind byte for metrics
// labeling.
func backendKind(msg message.BackendMessage) (byte, bool) {
	switch msg.(type) {
	case *message.AuthenticationRequest:
		return byte(message.KindAuthentication), true
	case *message.BackendKeyData:
		return byte(message.KindBackendKeyData), true
	case *message.BindComplete:
		return byte(message.KindBindComplete), true
	case *message.CloseComplete:
		return byte(message.KindCloseComplete), true
	case *message.CommandComplete:
		return byte(message.KindCommandComplete), true
	case *message.CopyData:
		return byte(message.KindCopyData), true
	case *message.CopyDone:
		return byte(message.KindCopyDone), true
	case *message.CopyResponse:
		if msg.(*message.CopyResponse).In {
			return byte(message.KindCopyInResponse), true
		}
		return byte(message.KindCopyOutResponse), true
	case *message.DataRow:
		return byte(message.KindDataRow), true
	case *message.EmptyQueryResponse:
		return byte(message.KindEmptyQueryResponse), true
	case *message.ErrorOrNotice:
		if msg.(*message.ErrorOrNotice).IsError {
			return byte(message.KindErrorResponse), true
		}
		return byte(message.KindNoticeResponse), true
	case *message.NoData:
		return byte(message.KindNoData), true
	case *message.ParameterDescription:
		return byte(message.KindParameterDescription), true
	case *message.ParameterStatus:
		return byte(message.KindParameterStatus), true
	case *message.ParseComplete:
		return byte(message.KindParseComplete), true
	case *message.PortalSuspended:
		return byte(message.KindPortalSuspended), true
	case *message.ReadyForQuery:
		return byte(message.KindReadyForQuery), true
	case *message.RowDescription:
		return byte(message.KindRowDescription), true
	default:
		return 0, false
	}
}
