package wininput

// absoluteMax is the upper bound of SendInput absolute coordinates.
const absoluteMax = 65535

// desktop is the virtual screen spanning every monitor, in pixels.
type desktop struct {
	X, Y, W, H int
}

// absolute converts a desktop pixel to the normalized range SendInput expects with
// MOUSEEVENTF_VIRTUALDESK. Points outside the desktop are clamped to its edge.
func (d desktop) absolute(x, y int) (int32, int32) {
	w, h := max(d.W, 2), max(d.H, 2)
	x = min(max(x, d.X), d.X+w-1)
	y = min(max(y, d.Y), d.Y+h-1)
	ax := int64(x-d.X) * absoluteMax / int64(w-1)
	ay := int64(y-d.Y) * absoluteMax / int64(h-1)
	return int32(ax), int32(ay)
}
