package store

// Entry はコレクション要素と処理中フラグを保持する。
// フラグはストア内だけの一時的な値で、APIへの送信や永続化の対象にならない。
type Entry[T any] struct {
	Value       T      `json:"value"`
	Deleting    bool   `json:"deleting,omitempty"`
	Updating    bool   `json:"updating,omitempty"`
	DeleteError string `json:"delete_error,omitempty"`
	UpdateError string `json:"update_error,omitempty"`

	// 同じキーへの操作が重なった場合に備えた処理中の件数。
	deletes int
	updates int
}

// Busy はいずれかの操作が処理中かを返す。
func (e Entry[T]) Busy() bool {
	return e.Deleting || e.Updating
}

// beginDelete は削除の開始を記録し、前回の削除エラーを消す。
func (e Entry[T]) beginDelete() Entry[T] {
	e.deletes++
	e.Deleting = true
	e.DeleteError = ""
	return e
}

// endDelete は削除の完了を記録する。Deletingは処理中の削除がなくなった時点で下りる。
func (e Entry[T]) endDelete() Entry[T] {
	if e.deletes > 0 {
		e.deletes--
	}
	e.Deleting = e.deletes > 0
	return e
}

// beginUpdate は更新の開始を記録し、前回の更新エラーを消す。
func (e Entry[T]) beginUpdate() Entry[T] {
	e.updates++
	e.Updating = true
	e.UpdateError = ""
	return e
}

// endUpdate は更新の完了を記録する。
func (e Entry[T]) endUpdate() Entry[T] {
	if e.updates > 0 {
		e.updates--
	}
	e.Updating = e.updates > 0
	return e
}

// Wrap は値をフラグなしのEntryへ包む。
func Wrap[T any](values []T) []Entry[T] {
	entries := make([]Entry[T], len(values))
	for i, v := range values {
		entries[i] = Entry[T]{Value: v}
	}
	return entries
}

// Values はEntryから値のみを取り出す。
func Values[T any](entries []Entry[T]) []T {
	values := make([]T, len(entries))
	for i, e := range entries {
		values[i] = e.Value
	}
	return values
}

// keyed はキー関数付きのEntry操作をまとめる。
type keyed[T any] struct {
	key func(T) string
}

// index はキーが一致する最初の要素の位置を返す。見つからなければ-1。
func (k keyed[T]) index(entries []Entry[T], key string) int {
	for i, e := range entries {
		if k.key(e.Value) == key {
			return i
		}
	}
	return -1
}

// update はキーに一致する要素へfnを適用したコピーを返す。他の要素は変更しない。
func (k keyed[T]) update(entries []Entry[T], key string, fn func(Entry[T]) Entry[T]) []Entry[T] {
	out := make([]Entry[T], len(entries))
	for i, e := range entries {
		if k.key(e.Value) == key {
			e = fn(e)
		}
		out[i] = e
	}
	return out
}

// removeFirst はキーに一致する最初の要素を除いたコピーを返す。
func (k keyed[T]) removeFirst(entries []Entry[T], key string) []Entry[T] {
	i := k.index(entries, key)
	if i < 0 {
		return entries
	}
	out := make([]Entry[T], 0, len(entries)-1)
	out = append(out, entries[:i]...)
	return append(out, entries[i+1:]...)
}

// replace は値を丸ごと入れ替えたコレクションを返す。
// 入れ替え後も存在するキーの処理中フラグは引き継ぐ。
func (k keyed[T]) replace(prev []Entry[T], values []T) []Entry[T] {
	inFlight := make(map[string]Entry[T])
	for _, e := range prev {
		if e.Busy() {
			inFlight[k.key(e.Value)] = e
		}
	}
	out := Wrap(values)
	for i := range out {
		if p, ok := inFlight[k.key(out[i].Value)]; ok {
			out[i].Deleting = p.Deleting
			out[i].Updating = p.Updating
			out[i].deletes = p.deletes
			out[i].updates = p.updates
		}
	}
	return out
}

// cloneSlice はnilと空スライスの区別を保ったままコピーする。
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
