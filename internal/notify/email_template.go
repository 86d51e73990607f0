package notify

const emailHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{.Notification.Title}}</title>
  <style>
    body {
      margin: 0;
      padding: 24px;
      background-color: #f3f4f6;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      color: #111827;
      line-height: 1.5;
    }

    .container {
      max-width: 640px;
      margin: 0 auto;
      background: #ffffff;
      border-radius: 8px;
      border: 1px solid #e5e7eb;
      overflow: hidden;
    }

    .header {
      padding: 20px 24px;
      background: linear-gradient(135deg, #5b2a86 0%, #37393b 100%);
      color: #ffffff;
    }

    .headline {
      font-size: 20px;
      font-weight: 700;
      margin-bottom: 4px;
    }

    .subtitle {
      font-size: 14px;
      opacity: 0.9;
    }

    .section {
      padding: 16px 24px;
      border-top: 1px solid #f3f4f6;
    }

    .section-title {
      font-size: 11px;
      font-weight: 700;
      color: #6b7280;
      text-transform: uppercase;
      letter-spacing: 0.1em;
      margin-bottom: 12px;
    }

    .class-list {
      margin: 0;
      padding-left: 20px;
      font-size: 14px;
    }

    .class-list li {
      margin-bottom: 8px;
      padding-left: 4px;
    }

    .cta-button {
      display: inline-block;
      margin-top: 12px;
      padding: 10px 20px;
      font-size: 14px;
      font-weight: 600;
      color: #ffffff !important;
      background: #5b2a86;
      border-radius: 6px;
      text-decoration: none;
    }

    .footer {
      padding: 16px 24px;
      font-size: 12px;
      color: #9ca3af;
      text-align: center;
      background: #f9fafb;
      border-top: 1px solid #f3f4f6;
    }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <div class="headline">{{.Headline}}</div>
      <div class="subtitle">{{.Notification.Title}}</div>
    </div>

    {{if .Classes}}
    <div class="section">
      <div class="section-title">Classes</div>
      <ul class="class-list">
        {{range .Classes}}
        <li>{{.}}</li>
        {{end}}
      </ul>
    </div>
    {{end}}

    {{if .SourceURL}}
    <div class="section">
      <a href="{{.SourceURL}}" class="cta-button" target="_blank" rel="noopener">
        Open Eventbrite →
      </a>
    </div>
    {{end}}

    <div class="footer">
      Sent by classmonitor at {{.SentAt.Format "02 Jan 2006 3:04 PM MST"}}
    </div>
  </div>
</body>
</html>`
