package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// XLSXContentType is the media type of spreadsheet downloads.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ContentDispositionValue is the Content-Disposition header downloading a
// file called fileName. Double quotes in the name become underscores.
func ContentDispositionValue(fileName string) string {
	return `attachment;filename="` + strings.ReplaceAll(fileName, `"`, "_") + `"`
}

// PrepareXLSXDownload answers with payload as the spreadsheet fileTitle.xlsx.
func PrepareXLSXDownload(c *fiber.Ctx, fileTitle string, payload []byte) error {
	c.Set(fiber.HeaderContentType, XLSXContentType)
	c.Set(fiber.HeaderContentDisposition, ContentDispositionValue(fileTitle+".xlsx"))
	return c.Send(payload)
}
