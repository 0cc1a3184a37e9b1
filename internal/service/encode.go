package service

import (
	"kerno/internal/jsonright"
	"kerno/internal/model"
)

// DocumentPage is one page of the document list.
type DocumentPage struct {
	Items  []model.Document
	Total  int
	Limit  int
	Offset int
}

// DocumentDetail is a document with everything its screen shows.
type DocumentDetail struct {
	Document *model.Document
	Tags     []model.Tag
	URL      string
}

// Encoders returns the jsonright encoders of the document entities. The
// "detail" feature adds the fields only a detail screen needs.
func Encoders() *jsonright.Registry[*Userless] {
	r := jsonright.NewRegistry[*Userless]()
	jsonright.Register(r, encodeDocument)
	jsonright.Register(r, func(t model.Tag, _ *Userless, _ jsonright.Features) (any, error) {
		return jsonright.Entity2Dict(t, "name", "color"), nil
	})
	jsonright.Register(r, func(p DocumentPage, _ *Userless, _ jsonright.Features) (any, error) {
		return map[string]any{
			"items":  p.Items,
			"total":  p.Total,
			"limit":  p.Limit,
			"offset": p.Offset,
		}, nil
	})
	jsonright.Register(r, func(d DocumentDetail, up *Userless, f jsonright.Features) (any, error) {
		out, err := encodeDocument(*d.Document, up, f)
		if err != nil {
			return nil, err
		}
		m := out.(map[string]any)
		m["tags"] = d.Tags
		m["url"] = d.URL
		return m, nil
	})
	return r
}

func encodeDocument(d model.Document, _ *Userless, f jsonright.Features) (any, error) {
	out := jsonright.Entity2Dict(d, "id", "filename", "size", "content_type", "created_at")
	if f.Has("detail") {
		out["uploaded_by"] = d.UploadedBy
		out["storage_path"] = d.StoragePath
	}
	return out, nil
}
