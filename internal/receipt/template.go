package receipt

import "html/template"

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #111;">
  <h1>{{.StoreName}}</h1>
  <p>{{.Intro}}</p>
  <p>Order <strong>{{.OrderNumber}}</strong>{{if .Total}} &middot; {{.Total}}{{end}}</p>
  <table cellpadding="8" style="border-collapse: collapse;">
  {{- range .Links}}
    <tr>
      <td>{{.Name}}</td>
      <td><a href="{{.URL}}">Download</a></td>
    </tr>
  {{- end}}
  </table>
  <p>Links expire in {{.ExpiryHours}} hours and can be used up to {{.MaxDownloads}} times each.</p>
  <p>Thanks for shopping with {{.StoreName}}.</p>
</body>
</html>
`))

type link struct {
	Name string
	URL  string
}

type receiptView struct {
	StoreName    string
	Intro        string
	OrderNumber  string
	Total        string
	Links        []link
	ExpiryHours  int
	MaxDownloads int
}
