package model

// Timezone はユーザーに紐づくタイムゾーンレコード、
// またはタイムゾーンカタログのエントリを表す。
// ユーザータイムゾーンではNameがユーザー内で一意なキーとなる。
type Timezone struct {
	ID            int    `json:"id,omitempty"`
	Name          string `json:"name,omitempty"`
	TimezoneID    int    `json:"timezone_id,omitempty"`
	Location      string `json:"location,omitempty"`
	City          string `json:"city,omitempty"`
	RelativeToGMT string `json:"relative_to_gmt,omitempty"`
}

// TimezonePatch はタイムゾーン更新の部分ペイロード。
// nilフィールドは変更しない。
type TimezonePatch struct {
	Name       *string `json:"name,omitempty"`
	TimezoneID *int    `json:"timezone_id,omitempty"`
}

// IsEmpty は変更対象のフィールドが1つもないかを返す。
func (p TimezonePatch) IsEmpty() bool {
	return p.Name == nil && p.TimezoneID == nil
}

// Apply はパッチの非nilフィールドのみをtzへ反映したコピーを返す。
func (p TimezonePatch) Apply(tz Timezone) Timezone {
	if p.Name != nil {
		tz.Name = *p.Name
	}
	if p.TimezoneID != nil {
		tz.TimezoneID = *p.TimezoneID
	}
	return tz
}

// ListEnvelope は一覧系エンドポイントのレスポンス形式 {"data": [...]} を表す。
type ListEnvelope[T any] struct {
	Data []T `json:"data"`
}
