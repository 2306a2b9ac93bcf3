// Solar Support API
//
// Customer support backend for a solar installer: chat widget, tickets,
// callbacks, notifications, live chat and site content.
//
// @title Solar Support API
// @version 1.0
// @description Support backend for the solar company website.
// @description
// @description ## Identity
// @description
// @description Callers identify themselves with `X-User-ID` and `X-User-Role`
// @description (customer, agent or admin). Staff-only routes answer 403 otherwise.
// @description
// @description ## Idempotency
// @description
// @description Creates accept an `Idempotency-Key` header; a retried request with the
// @description same key returns the original record.
// @description
// @description ## Error Responses
// @description
// @description ```json
// @description {"request_id": "...", "code": "not_found", "message": "ticket not found"}
// @description ```
//
// @BasePath /api
// @schemes http https
//
// @tag.name Chat
// @tag.description Chat widget answers and page suggestions
//
// @tag.name Tickets
// @tag.description Support tickets, history and messages
//
// @tag.name Callbacks
// @tag.description Callback requests and contact forms
//
// @tag.name Notifications
// @tag.description In-app notification inbox
//
// @tag.name LiveChat
// @tag.description Live chat sessions and agent transfers
//
// @tag.name Files
// @tag.description Upload storage
//
// @tag.name Content
// @tag.description Pages, sections and FAQs
//
// @tag.name Users
// @tag.description Users and agent availability
package main
